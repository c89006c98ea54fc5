package grouper_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string, values map[string]string) (*kconfig.Graph, *kconfig.Assignment) {
	t.Helper()

	g, err := kconfig.Parse(log.New(), "Kconfig", []byte(src))
	require.NoError(t, err)

	return g, kconfig.NewAssignment(g, values)
}

func names(g *kconfig.Graph, groups []grouper.Group) map[string][]string {
	res := make(map[string][]string, len(groups))
	for _, group := range groups {
		res[group.Name] = g.Names(group.Members)
	}

	return res
}

func TestGroupsLeavesBeforeComponents(t *testing.T) {
	t.Parallel()

	g, a := parse(t, `
config A
	bool "a"
config B
	bool "b"
config C
	bool "c"
config D
	bool "d"
	depends on B
`, map[string]string{"A": "y", "B": "y", "C": "y", "D": "y"})

	groups := grouper.Collect(g, a, grouper.Options{})

	require.Len(t, groups, 4)
	assert.Equal(t, []string{"leaf:A", "leaf:C", "leaf:D", "single:B"},
		[]string{groups[0].Name, groups[1].Name, groups[2].Name, groups[3].Name})
	assert.Equal(t, grouper.KindSingle, groups[3].Kind)
}

func TestGroupsSkipDisabledAndNonBoolean(t *testing.T) {
	t.Parallel()

	g, a := parse(t, `
config A
	bool "a"
config B
	bool "b"
config SIZE
	int "size"
	depends on A
`, map[string]string{"A": "y", "SIZE": "4"})

	groups := grouper.Collect(g, a, grouper.Options{})

	assert.Equal(t, map[string][]string{"single:A": {"A"}}, names(g, groups))
}

func TestGroupsCycleIsOneGroup(t *testing.T) {
	t.Parallel()

	g, a := parse(t, `
config A
	bool "a"
	select B
config B
	bool "b"
	depends on A
config C
	bool "c"
	depends on A
`, map[string]string{"A": "y", "B": "y", "C": "y"})

	groups := grouper.Collect(g, a, grouper.Options{})

	assert.Equal(t, map[string][]string{
		"leaf:C": {"C"},
		"scc:A+1": {"A", "B"},
	}, names(g, groups))
}

func TestGroupsDependentsFirst(t *testing.T) {
	t.Parallel()

	g, a := parse(t, `
config LOW
	bool "low"
config MID
	bool "mid"
	depends on LOW
config HIGH
	bool "high"
	depends on MID
config TOP
	bool "top"
	depends on HIGH
`, map[string]string{"LOW": "y", "MID": "y", "HIGH": "y", "TOP": "y"})

	var order []string
	for group := range grouper.Groups(g, a, grouper.Options{}) {
		order = append(order, group.Name)
	}

	assert.Equal(t, []string{"leaf:TOP", "single:HIGH", "single:MID", "single:LOW"}, order)
}

func TestGroupsMenus(t *testing.T) {
	t.Parallel()

	src := `
menu "Drivers"
config X
	bool "x"
config Y
	bool "y"
	depends on X
config Z
	bool "z"
endmenu

menuconfig SOUND
	bool "Sound"
if SOUND
config SND_A
	tristate "a"
config SND_B
	tristate "b"
endif
`
	values := map[string]string{"X": "y", "Y": "y", "Z": "y", "SOUND": "y", "SND_A": "m", "SND_B": "m"}

	g, a := parse(t, src, values)

	groups := names(g, grouper.Collect(g, a, grouper.Options{}))
	assert.Equal(t, []string{"X", "Y", "Z"}, groups["menu:Drivers"])
	assert.Equal(t, []string{"SOUND", "SND_A", "SND_B"}, groups["menu:Sound"])

	limited := names(g, grouper.Collect(g, a, grouper.Options{MaxGroupSize: 2}))
	assert.NotContains(t, limited, "menu:Drivers")
	assert.NotContains(t, limited, "menu:Sound")
	assert.Contains(t, limited, "leaf:Y")
}

func TestGroupsSinglesAfterMenus(t *testing.T) {
	t.Parallel()

	g, a := parse(t, `
menu "Net"
config NET
	bool "net"
config INET
	bool "inet"
	depends on NET
config IPV6
	bool "ipv6"
	depends on INET
endmenu
config LOOP_A
	bool "a"
	select LOOP_B
config LOOP_B
	bool "b"
	depends on LOOP_A
config USER
	bool "user"
	depends on LOOP_B
`, map[string]string{"NET": "y", "INET": "y", "IPV6": "y", "LOOP_A": "y", "LOOP_B": "y", "USER": "y"})

	var (
		order []string
		kinds []grouper.Kind
	)

	for group := range grouper.Groups(g, a, grouper.Options{}) {
		order = append(order, group.Name)
		kinds = append(kinds, group.Kind)
	}

	assert.Equal(t, []string{"leaf:IPV6", "leaf:USER", "scc:LOOP_A+1", "menu:Net", "single:INET", "single:NET"}, order)
	assert.Equal(t, []grouper.Kind{
		grouper.KindLeaf, grouper.KindLeaf, grouper.KindSCC, grouper.KindMenu, grouper.KindSingle, grouper.KindSingle,
	}, kinds)
}

func TestGroupsStopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	g, a := parse(t, "config A\n\tbool \"a\"\nconfig B\n\tbool \"b\"\n", map[string]string{"A": "y", "B": "y"})

	count := 0
	for range grouper.Groups(g, a, grouper.Options{}) {
		count++
		break
	}

	assert.Equal(t, 1, count)
}

func TestStronglyConnectedDeepChain(t *testing.T) {
	t.Parallel()

	const depth = 20000

	var (
		sb     strings.Builder
		values = make(map[string]string, depth)
	)

	for i := range depth {
		fmt.Fprintf(&sb, "config N%d\n\tbool \"n\"\n", i)

		// N0 needs the last option, which closes the chain into one cycle.
		fmt.Fprintf(&sb, "\tdepends on N%d\n", (i+depth-1)%depth)

		values[fmt.Sprintf("N%d", i)] = "y"
	}

	g, a := parse(t, sb.String(), values)

	sccs := grouper.StronglyConnected(g, a)
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], depth)
}
