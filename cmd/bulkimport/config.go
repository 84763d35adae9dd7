package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/bulkimport/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, and environment variable substitution without importing anything.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configInitCmd.Flags().Bool("effective", false, "Write the loaded configuration with defaults applied instead of the template")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configTestCmd, configInitCmd)
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			return err
		}
		path = found
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(cmd, configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(cmd, cfg)
	if warns := cfg.Warnings(); len(warns) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warns {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	fmt.Fprintln(out, "\nConfiguration valid!")
	return nil
}

func printConfigErrors(cmd *cobra.Command, e *config.ConfigError) {
	out := cmd.OutOrStdout()
	if len(e.Missing) > 0 {
		fmt.Fprintln(out, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(out, "  - %s\n", m)
		}
		fmt.Fprintln(out)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintln(out, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(out, "  - %s\n", err)
		}
		fmt.Fprintln(out)
	}
}

func printConfigSummary(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration Summary:")
	fmt.Fprintf(out, "  Server:     %s:%d (log: %s, metrics: %t)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.LogLevel, cfg.Server.Metrics)
	fmt.Fprintf(out, "  Database:   %s\n", cfg.Database.Path)
	fmt.Fprintf(out, "  Library:    %s (staging: %s)\n", cfg.Library.Root, cfg.Library.Staging)
	fmt.Fprintf(out, "  Import:     %s mode, %d files per pass, %s per file\n",
		cfg.Import.DefaultMode, cfg.Import.AdmissionCeiling, cfg.Import.FileTimeout)
	fmt.Fprintf(out, "  Validation: %d bytes - %d bytes, %s - %s\n",
		cfg.Validation.MinSize, cfg.Validation.MaxSize, cfg.Validation.MinDuration, cfg.Validation.MaxDuration)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")
	effective, _ := cmd.Flags().GetBool("effective")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
	}

	if effective {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Write(path); err != nil {
			return err
		}
	} else if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
