package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"salesdash/internal/pipeline"
)

func newSummaryCommand(e *env) *cobra.Command {
	var (
		req      pipeline.Request
		rawLimit int
	)
	cmd := &cobra.Command{
		Use:   "summary [file]",
		Short: "Compute the dashboard and print it as JSON",
		Example: `  dashctl summary orders.csv --start 2017-01-01 --end 2017-12-31 --region East
  dashctl summary --region West --state California`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := req.Query()
			if err != nil {
				return err
			}
			ds, err := e.load(cmd.Context(), args)
			if err != nil {
				return err
			}

			composer := pipeline.NewComposer(e.logger, pipeline.Options{
				SampleRows:  e.cfg.Dataset.SampleRows,
				RawRowLimit: rawLimit,
			})
			d := composer.Compose(cmd.Context(), ds, q)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Start, "start", "", "first day of the range, YYYY-MM-DD")
	f.StringVar(&req.End, "end", "", "last day of the range, YYYY-MM-DD")
	f.StringSliceVar(&req.Region, "region", nil, "keep only these regions (repeatable)")
	f.StringSliceVar(&req.State, "state", nil, "keep only these states (repeatable)")
	f.StringSliceVar(&req.City, "city", nil, "keep only these cities (repeatable)")
	f.IntVar(&rawLimit, "raw-limit", 20, "rows of the filtered table to include")
	return cmd
}
