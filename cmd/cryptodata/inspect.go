package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cryptodata/pkg/checkpoint"
	"cryptodata/pkg/config"
	"cryptodata/pkg/dataset"
	"cryptodata/pkg/logger"
	"cryptodata/pkg/storage"
	"cryptodata/pkg/ui"
)

var inspectPair string

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Describe a collected dataset",
	Long: `Read a dataset written by 'cryptodata scrape' and show what a resumed run
would start from: row count, columns, index format, first and last trade and
the resume cursor.

When a database DSN is configured the number of mirrored rows is shown too.`,
	Example: `  cryptodata inspect XETHZEUR
  cryptodata inspect btc.csv --pair XXBTZUSD`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectPair, "pair", "p", "XETHZEUR", "currency pair stored in the file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if cmd.Flags().Changed("pair") {
		flags["pair"] = inspectPair
	}
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	path := cfg.OutputPath()
	if len(args) == 1 {
		path = args[0]
	}

	state, err := checkpoint.NewLoader(logger.GetLogger()).LoadFile(path, cfg.Collection.Pair)
	if err != nil {
		return err
	}
	d := state.Prefix

	console.PrintHighlight("Dataset " + path)
	console.PrintInfo("Pair", d.Symbol)
	console.PrintInfo("Records", fmt.Sprintf("%d", d.Len()))
	console.PrintInfo("Columns", strings.Join(storage.Header(d.Symbol, d.Schema), ","))
	console.PrintInfo("Schema", d.Schema.String())
	console.PrintInfo("Index", d.Index.String())

	if first, ok := d.First(); ok {
		console.PrintInfo("First trade", first.Timestamp.Format(ui.TimestampLayout))
	}
	if last, ok := state.LastTimestamp(); ok {
		console.PrintInfo("Last trade", last.Format(ui.TimestampLayout))
		console.PrintInfo("Behind by", time.Since(last).Round(time.Second).String())
	}
	console.PrintInfo("Resume cursor", fmt.Sprintf("%d", state.Cursor))

	if ok, idx := dataset.IsOrdered(d.Records); !ok {
		console.PrintWarning("Records are not in time order", fmt.Sprintf("row %d", idx+2))
	}

	if cfg.Database.DSN != "" {
		inspectMirror(cmd.Context(), cfg, d)
	}

	return nil
}

func inspectMirror(ctx context.Context, cfg *config.Config, d *dataset.Dataset) {
	pg, err := storage.NewPostgresStore(cfg.Database.DSN, cfg.Database.BatchSize, logger.GetLogger())
	if err != nil {
		console.PrintWarning("Mirror unavailable", err)
		return
	}
	defer pg.Close()

	if !pg.IsHealthy(ctx) {
		console.PrintWarning("Mirror unavailable", "database did not answer")
		return
	}

	stored, err := pg.StoredCount(ctx, d.Symbol)
	if err != nil {
		console.PrintWarning("Mirror unavailable", err)
		return
	}
	console.PrintInfo("Mirrored rows", fmt.Sprintf("%d (%d pending)", stored, len(storage.PendingRows(d, stored))))
}
