package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"salesdash/internal/exporter"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		output string
		bom    bool
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the whole dataset as UTF-8 CSV",
		Long:  `export re-encodes the dataset as UTF-8 CSV with a header row. Filters never apply to the export.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := e.load(cmd.Context(), args)
			if err != nil {
				return err
			}

			w := exporter.NewCSVWriter(e.logger)
			if output == "-" {
				_, err := w.WriteDataset(cmd.Context(), cmd.OutOrStdout(), ds, exporter.WriteOptions{BOMPrefix: bom})
				return err
			}
			if err := w.WriteFile(cmd.Context(), output, ds, exporter.WriteOptions{BOMPrefix: bom}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", ds.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "cleaned_data.csv", `output path, "-" for stdout`)
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix a UTF-8 byte order mark for Excel")
	return cmd
}
