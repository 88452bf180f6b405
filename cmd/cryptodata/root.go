package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"cryptodata/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool

	console *ui.Console
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cryptodata",
	Short: "Collect the public trade history of a Kraken currency pair",
	Long: `cryptodata downloads every public trade of a Kraken currency pair and
stores it as a CSV table indexed by trade time.

A previous table can be passed back in to continue where it stopped: only
trades newer than its last row are requested and appended.

Features:
  - Resumable collection from an existing CSV file
  - Automatic retry of throttled or failed requests
  - Optional buy/sell and market/limit columns
  - Optional mirror of the collected trades into Postgres`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			console = ui.NewConsoleWithColor(os.Stdout, false)
		} else {
			console = ui.NewConsole(os.Stdout)
		}
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context, which
// ends a collection run gracefully.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.NewConsole(os.Stderr).PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.cryptodata.yaml or $HOME/.config/cryptodata/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`cryptodata {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
