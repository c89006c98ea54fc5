package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kdice/kdice/cli/commands/common"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
)

type groupView struct {
	Name    string       `json:"name"`
	Kind    grouper.Kind `json:"kind"`
	Members []string     `json:"members"`
}

func Run(_ context.Context, opts *Options) error {
	if _, err := common.LoadWorkload(opts.KdiceOptions, false); err != nil {
		return err
	}

	g, _, err := common.LoadGraph(opts.KdiceOptions)
	if err != nil {
		return err
	}

	a, err := common.LoadConfig(g, opts.BaselinePath)
	if err != nil {
		return err
	}

	a = kconfig.Normalize(g, a)

	var views []groupView

	for group := range grouper.Groups(g, a, grouper.Options{MaxGroupSize: opts.Search.MaxGroupSize}) {
		views = append(views, groupView{Name: group.Name, Kind: group.Kind, Members: g.Names(group.Members)})
	}

	if opts.JSON {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return errors.New(err)
		}

		_, err = fmt.Fprintln(opts.Writer, string(data))

		return errors.New(err)
	}

	for _, view := range views {
		if _, err := fmt.Fprintf(opts.Writer, "%-6s %-40s %s\n", view.Kind, view.Name, strings.Join(view.Members, " ")); err != nil {
			return errors.New(err)
		}
	}

	return nil
}
