package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cryptodata/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cryptodata configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CRYPTODATA_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file is created as '.cryptodata.yaml' in the current directory unless a
different path is given with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration resolved from all sources.

Database passwords are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Log file directory accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".cryptodata.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		console.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("refusing to overwrite %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	console.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the pair and output file in the collection section")
	fmt.Println("2. Run 'cryptodata config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'cryptodata scrape'")
	return nil
}

// redactDSN hides the password of a URL-style DSN
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	displayCfg := *cfg
	displayCfg.Database.DSN = redactDSN(displayCfg.Database.DSN)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	console.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (CRYPTODATA_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: first found of")
		for _, loc := range config.ConfigLocations() {
			fmt.Printf("     %s\n", loc)
		}
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, loc := range config.ConfigLocations() {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no configuration file found, specify one with --config")
		}
	}

	console.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}
	if cfg.Retry.MaxConsecutive == 0 {
		warnings = append(warnings, "retries never give up (retry.max_consecutive is 0)")
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		warnings = append(warnings, "requests are not paced (rate_limit.requests_per_second is 0)")
	}

	if len(warnings) > 0 {
		console.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	console.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Pair: %s\n", cfg.Collection.Pair)
	fmt.Printf("  Output file: %s\n", cfg.OutputPath())
	fmt.Printf("  Retry: %s every %s\n", cfg.Retry.Strategy, cfg.Retry.Interval)
	fmt.Printf("  Rate limit: %g requests/second\n", cfg.RateLimit.RequestsPerSecond)
	fmt.Printf("  Database mirror: %s\n", redactDSN(cfg.Database.DSN))
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
