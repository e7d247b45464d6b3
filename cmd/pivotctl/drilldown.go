package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"pivotboard/internal/core"
	"pivotboard/internal/pivot"
)

type drilldownOptions struct {
	mapping string
	data    string
	row     string
	column  string
	sep     string
}

func newDrilldownCmd() *cobra.Command {
	opts := &drilldownOptions{}
	cmd := &cobra.Command{
		Use:     "drilldown",
		Short:   "Print the filter clauses selecting the rows behind a cell",
		Example: `  pivotctl drilldown --mapping widget.json --row US/NY --column gold
  pivotctl drilldown --mapping widget.json --data sales.json --row 1.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrilldown(cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.mapping, "mapping", "", "widget or mapping JSON file")
	f.StringVar(&opts.data, "data", "", "result set JSON file; clauses then carry values as stored in it")
	f.StringVar(&opts.row, "row", "", "row path, empty for the grand total")
	f.StringVar(&opts.column, "column", "", "pivot path of the column, empty for the measure total")
	f.StringVar(&opts.sep, "sep", "/", "path segment separator")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

func runDrilldown(out io.Writer, opts *drilldownOptions) error {
	w, err := readWidget(opts.mapping)
	if err != nil {
		return err
	}
	md, err := pivot.ParseMapping(w.Mapping)
	if err != nil {
		return err
	}
	row, column := splitPath(opts.row, opts.sep), splitPath(opts.column, opts.sep)

	var clauses []core.FilterClause
	if opts.data != "" {
		rs, err := readResultSet(opts.data)
		if err != nil {
			return err
		}
		clauses, err = pivot.Build(md, rs).Drilldown(row, column)
		if err != nil {
			return err
		}
	} else {
		clauses, err = pivot.BuildDrilldown(md, row, column)
		if err != nil {
			return err
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(clauses)
}
