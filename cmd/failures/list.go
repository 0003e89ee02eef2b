package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nadmax/failscope/internal/grid"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/task"
	"github.com/nadmax/failscope/internal/viewmodel"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type listOptions struct {
	project  string
	days     int
	statuses []string
	grouped  bool
}

func newListCmd() *cobra.Command {
	opts := listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List failed tasks created within the look-back window.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rootOpts.apiURL == "" {
				return errors.New("--api or QUERY_API_URL is required")
			}
			if opts.days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", opts.days)
			}

			client := query.NewHTTPClient(query.HTTPOptions{
				BaseURL:  strings.TrimRight(rootOpts.apiURL, "/"),
				User:     rootOpts.apiUser,
				APIKey:   rootOpts.apiKey,
				RetryMax: rootOpts.retries,
			})
			return runList(cmd, client, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.project, "project", "p", "", "project identifier")
	flags.IntVarP(&opts.days, "days", "d", viewmodel.DefaultLookBackDays, "look-back window in days")
	flags.StringSliceVar(&opts.statuses, "status", viewmodel.DefaultFilter().Statuses, "task statuses to include")
	flags.BoolVar(&opts.grouped, "grouped", false, "group rows by variant and task")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runList(cmd *cobra.Command, client query.Client, opts listOptions) error {
	b := viewmodel.New(opts.project, client, viewmodel.WithFilter(viewmodel.Filter{
		LookBackDays: opts.days,
		Statuses:     opts.statuses,
	}))

	res := b.Reload(cmd.Context())
	if res.Err != nil {
		return fmt.Errorf("failed to load failures for %s: %w", opts.project, res.Err)
	}

	out := cmd.OutOrStdout()
	if opts.grouped {
		renderGrouped(out, b.Rows())
	} else {
		renderRows(out, b.Rows(), b.Columns())
	}
	_, err := fmt.Fprintf(out, "%d failures since %s\n", len(res.Rows), grid.FormatTime(res.Params.StartedAfter))
	return err
}

func renderRows(w io.Writer, rows []task.Record, cols []grid.Column) {
	visible := lo.Filter(cols, func(c grid.Column, _ int) bool { return !c.Hidden })

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(lo.Map(visible, func(c grid.Column, _ int) string { return c.Name }))

	for _, r := range grid.SortRows(rows, cols) {
		table.Append(lo.Map(visible, func(c grid.Column, _ int) string { return c.Text(r) }))
	}
	table.Render()
}

func renderGrouped(w io.Writer, rows []task.Record) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)
	table.SetHeader([]string{"Variant", "Task", "Latest", "Kind", "Link"})

	for _, vg := range grid.Group(rows) {
		variant := fmt.Sprintf("%s (%s)", vg.BuildVariant, grid.FormatTime(vg.MaxCreateTime))
		for _, tg := range vg.Tasks {
			name := fmt.Sprintf("%s (%d)", tg.DisplayName, len(tg.Rows))
			for _, r := range tg.Rows {
				table.Append([]string{variant, name, grid.FormatTime(r.CreateTime), task.StatusLabel(r), grid.TaskLink(r)})
			}
		}
	}
	table.Render()
}
