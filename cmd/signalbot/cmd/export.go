package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalbot/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate the CSV export from the JSON store",
	Long: `Rebuild the tabular export from the JSON signal history without running
the bot. Useful after hand-editing the history or after a replay.

Example:
  signalbot export -f configs/btcusd.yaml --out signals.csv`,
	RunE: runExport,
}

var (
	exportIn  string
	exportOut string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportIn, "in", "", "JSON store to read (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "CSV file to write (default from config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := cfg.Store.JSONFile
	if exportIn != "" {
		in = exportIn
	}
	out := cfg.Store.CSVFile
	if exportOut != "" {
		out = exportOut
	}
	if out == "" {
		return fmt.Errorf("no CSV path: set store.csv_file or pass --out")
	}

	sigs, err := store.NewJSON(in).Load()
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}
	if err := store.WriteCSV(out, sigs, cfg.Signals.DisplayLocation()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	fmt.Printf("Wrote %d signal(s) to %s\n", len(sigs), out)
	return nil
}
