package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pivotboard/internal/pivot"
	"pivotboard/internal/render"
)

type renderOptions struct {
	mapping   string
	data      string
	expand    []string
	expandAll bool
	percent   []string
	currency  string
	format    string
	sep       string
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a pivot table from a mapping and a result set",
		Example: `  pivotctl render --mapping widget.json --data sales.json --expand-all
  pivotctl render --mapping widget.json --data sales.json --expand US --percent US`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.mapping, "mapping", "", "widget or mapping JSON file")
	f.StringVar(&opts.data, "data", "", "result set JSON file")
	f.StringArrayVar(&opts.expand, "expand", nil, "row path to expand (repeatable)")
	f.BoolVar(&opts.expandAll, "expand-all", false, "expand every row")
	f.StringArrayVar(&opts.percent, "percent", nil, "row path to show as percentages (repeatable)")
	f.StringVar(&opts.currency, "currency", "", "currency code, overriding the widget and result set")
	f.StringVar(&opts.format, "format", "table", "output format (table, json)")
	f.StringVar(&opts.sep, "sep", "/", "path segment separator")
	_ = cmd.MarkFlagRequired("mapping")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runRender(out, errOut io.Writer, opts *renderOptions) error {
	w, err := readWidget(opts.mapping)
	if err != nil {
		return err
	}
	md, err := pivot.ParseMapping(w.Mapping)
	if err != nil {
		return err
	}

	rs, err := readResultSet(opts.data)
	if err != nil {
		return err
	}

	table := pivot.Build(md, rs)
	for _, warn := range table.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", warn.Message)
	}

	state := pivot.NewViewState(w.PercentageMode)
	if opts.expandAll {
		for _, n := range table.Rows.Nodes {
			if !n.IsLeaf() {
				state.SetExpanded(n.Path, true)
			}
		}
	}
	for _, p := range opts.expand {
		state.SetExpanded(splitPath(p, opts.sep), true)
	}
	for _, p := range opts.percent {
		state.TogglePercentage(splitPath(p, opts.sep))
	}

	code := opts.currency
	if code == "" {
		code = w.Currency
	}
	if code == "" {
		code = rs.Currency
	}
	grid := render.Build(table, state, pivot.CurrencyFor(code))

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	case "table":
		return writeTable(out, grid)
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

type leafColumn struct {
	field  string
	header string
}

// leafColumns flattens the column tree, joining ancestor headers.
func leafColumns(defs []render.ColumnDef, prefix []string) []leafColumn {
	var out []leafColumn
	for _, d := range defs {
		path := append(append([]string{}, prefix...), d.Header)
		if d.Field != "" {
			out = append(out, leafColumn{field: d.Field, header: strings.Join(path, " / ")})
			continue
		}
		out = append(out, leafColumns(d.Children, path)...)
	}
	return out
}

func writeTable(out io.Writer, grid render.Grid) error {
	cols := leafColumns(grid.Columns, nil)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)

	headers := make([]string, 0, len(cols)+1)
	headers = append(headers, "")
	for _, c := range cols {
		headers = append(headers, c.header)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t")+"\t")

	for _, r := range grid.Rows {
		marker := " "
		switch {
		case r.Expandable && r.Expanded:
			marker = "-"
		case r.Expandable:
			marker = "+"
		}
		label := strings.Repeat("  ", r.Level+1) + marker + " " + r.Label
		if r.Percentage {
			label += " (%)"
		}
		cells := make([]string, 0, len(cols)+1)
		cells = append(cells, label)
		for _, c := range cols {
			cells = append(cells, r.Cells[c.field])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}
