package powledger

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liftedinit/powledger/internal/exporter"
)

var exportTSVCmd = &cobra.Command{
	Use:   "export-tsv [json-dir] [flags]",
	Short: "Convert a JSON chain dump to TSV files",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := viper.GetString("out")
		if out == "" {
			return fmt.Errorf("missing output directory")
		}
		slog.Debug("Command-line argument", "out", out)

		n, err := exporter.ExportTSV(cmd.Context(), args[0], out)
		if err != nil {
			return fmt.Errorf("failed to export TSV: %w", err)
		}
		slog.Info("Export complete", "blocks", n, "out", out)
		return nil
	},
}

func init() {
	exportTSVCmd.Flags().StringP("out", "o", "tsv", "TSV output directory")
}
