// Package grouper partitions the enabled options of a configuration into candidate groups for
// one pruning round.
//
// Groups come in four tiers, emitted in priority order:
//
//  1. Leaf groups: a single enabled option that no enabled option needs.
//  2. SCC groups: a strongly connected component of the enabled subgraph with at least two
//     members, dependents first.
//  3. Menu groups: the enabled options of a menu subtree. Menus are feature areas, so they may
//     overlap the groups of the first two tiers, but a menu group identical to an earlier group
//     is skipped.
//  4. Single groups: an enabled option that is still needed by another enabled option, dependents
//     first. Disabling it alone only works when its dependents are forced off with it, so it
//     comes last.
//
// Only bool and tristate options are grouped, other kinds only go away through propagation.
package grouper

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/kdice/kdice/internal/kconfig"
)

// Kind is the tier a group belongs to.
type Kind string

const (
	KindLeaf   Kind = "leaf"
	KindSCC    Kind = "scc"
	KindMenu   Kind = "menu"
	KindSingle Kind = "single"
)

// Group is a set of options proposed for disabling together.
type Group struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Members []int  `json:"-"`
}

func (group Group) String() string {
	return fmt.Sprintf("%s (%d options)", group.Name, len(group.Members))
}

// Options tunes the grouping.
type Options struct {
	// MaxGroupSize drops SCC and menu groups with more members, 0 means no limit.
	// Leaf and single groups always fit.
	MaxGroupSize int
}

// Groups lazily yields the groups of one round, computed from the given round-start assignment.
// Every call restarts from the first tier.
func Groups(g *kconfig.Graph, a *kconfig.Assignment, opts Options) iter.Seq[Group] {
	return func(yield func(Group) bool) {
		emitted := make(map[string]bool)
		leaves := make(map[int]bool)

		emit := func(group Group) bool {
			emitted[groupKey(group.Members)] = true
			return yield(group)
		}

		for _, id := range a.EnabledIDs() {
			if !isLeaf(g, a, id) {
				continue
			}

			leaves[id] = true

			if !emit(Group{Name: string(KindLeaf) + ":" + g.Option(id).Name, Kind: KindLeaf, Members: []int{id}}) {
				return
			}
		}

		sccs := StronglyConnected(g, a)
		slices.Reverse(sccs)

		var singles []int

		for _, component := range sccs {
			members := prunable(g, component)

			if len(members) == 1 {
				if !leaves[members[0]] {
					singles = append(singles, members[0])
				}

				continue
			}

			if len(members) == 0 || !opts.fits(members) || emitted[groupKey(members)] {
				continue
			}

			if !emit(Group{Name: sccName(g, members), Kind: KindSCC, Members: members}) {
				return
			}
		}

		for menu, members := range menuMembers(g, a) {
			if len(members) < 2 || !opts.fits(members) || emitted[groupKey(members)] {
				continue
			}

			if !emit(Group{Name: string(KindMenu) + ":" + g.Menus[menu].Title, Kind: KindMenu, Members: members}) {
				return
			}
		}

		for _, id := range singles {
			if emitted[groupKey([]int{id})] {
				continue
			}

			if !emit(Group{Name: string(KindSingle) + ":" + g.Option(id).Name, Kind: KindSingle, Members: []int{id}}) {
				return
			}
		}
	}
}

// Collect returns every group of the round, for callers that need them all at once.
func Collect(g *kconfig.Graph, a *kconfig.Assignment, opts Options) []Group {
	return slices.Collect(Groups(g, a, opts))
}

func (opts Options) fits(members []int) bool {
	return opts.MaxGroupSize <= 0 || len(members) <= opts.MaxGroupSize
}

// isLeaf reports whether the option is enabled, prunable and not needed by any enabled option.
func isLeaf(g *kconfig.Graph, a *kconfig.Assignment, id int) bool {
	if !a.Enabled(id) || !g.Option(id).Prunable() {
		return false
	}

	for _, edge := range g.Dependents(id) {
		if a.Enabled(edge.From) {
			return false
		}
	}

	return true
}

func prunable(g *kconfig.Graph, ids []int) []int {
	members := make([]int, 0, len(ids))

	for _, id := range ids {
		if g.Option(id).Prunable() {
			members = append(members, id)
		}
	}

	return members
}

// menuMembers returns, per menu in declaration order, the enabled prunable options of the menu subtree.
func menuMembers(g *kconfig.Graph, a *kconfig.Assignment) iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		members := make([][]int, len(g.Menus))

		for _, id := range a.EnabledIDs() {
			opt := g.Option(id)
			if !opt.Prunable() {
				continue
			}

			for menu := opt.Menu; menu >= 0; menu = g.Menus[menu].Parent {
				members[menu] = append(members[menu], id)
			}
		}

		for _, menu := range g.Menus {
			if menu.Config >= 0 && a.Enabled(menu.Config) && g.Option(menu.Config).Prunable() {
				members[menu.ID] = append(members[menu.ID], menu.Config)
				slices.Sort(members[menu.ID])
			}

			if !yield(menu.ID, members[menu.ID]) {
				return
			}
		}
	}
}

func sccName(g *kconfig.Graph, members []int) string {
	name := string(KindSCC) + ":" + g.Option(members[0]).Name
	if len(members) > 1 {
		name += "+" + strconv.Itoa(len(members)-1)
	}

	return name
}

func groupKey(members []int) string {
	parts := make([]string, len(members))
	for i, id := range members {
		parts[i] = strconv.Itoa(id)
	}

	return strings.Join(parts, ",")
}
