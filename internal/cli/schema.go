package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"salesdash/internal/dataset"
)

type featureStatus struct {
	Feature dataset.Feature `json:"feature"`
	Enabled bool            `json:"enabled"`
	Missing []string        `json:"missing,omitempty"`
}

type schemaReport struct {
	Source   string          `json:"source"`
	Rows     int             `json:"rows"`
	Columns  []string        `json:"columns"`
	Missing  []string        `json:"missing,omitempty"`
	Features []featureStatus `json:"features"`
}

func newSchemaCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema [file]",
		Short: "List columns and the dashboard sections they enable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := e.load(cmd.Context(), args)
			if err != nil {
				return err
			}

			caps := dataset.CheckCapabilities(ds.Columns)
			report := schemaReport{
				Source:  ds.Source,
				Rows:    ds.Len(),
				Columns: ds.Columns,
				Missing: dataset.MissingColumns(ds.Columns, dataset.RequiredColumns),
			}
			for _, c := range dataset.Capabilities {
				report.Features = append(report.Features, featureStatus{
					Feature: c.Feature,
					Enabled: caps.Enabled(c.Feature),
					Missing: caps.Missing(c.Feature),
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "%s: %d rows\n", report.Source, report.Rows)
			fmt.Fprintf(out, "Columns: %s\n", strings.Join(report.Columns, ", "))
			if len(report.Missing) > 0 {
				fmt.Fprintf(out, "Missing: %s\n", strings.Join(report.Missing, ", "))
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tSTATUS\tMISSING")
			for _, f := range report.Features {
				status := "enabled"
				if !f.Enabled {
					status = "disabled"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Feature, status, strings.Join(f.Missing, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
