package main

import (
	"fmt"
	"os"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Kiln loads code units and extensions into a live program",
	Long: `Kiln reads a base program from a search path, discovers extension packages,
lets them transform every unit before it goes live and then runs the entry point.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file (yaml, json or toml); defaults to ./kiln.yaml when present")
	flags.String("entry", "", "Entry point symbol")
	flags.String("mods", "", "Extension packages directory")
	flags.String("classpath", "", "Search path of the base program")
	flags.StringSlice("protected", nil, "Name prefixes resolved by the host only")
	flags.String("log-level", "", "Log level (debug, info, warn, error, off)")
	flags.Bool("debug", false, "Shorthand for --log-level debug")
}

// flagsFrom collects the persistent flags the user actually set.
func flagsFrom(cmd *cobra.Command) cli.Flags {
	var f cli.Flags
	f.ConfigPath, _ = cmd.Flags().GetString("config")
	if cmd.Flags().Changed("entry") {
		f.Entry, _ = cmd.Flags().GetString("entry")
	}
	if cmd.Flags().Changed("mods") {
		f.Mods, _ = cmd.Flags().GetString("mods")
	}
	if cmd.Flags().Changed("classpath") {
		f.SearchPath, _ = cmd.Flags().GetString("classpath")
	}
	if cmd.Flags().Changed("protected") {
		f.Protected, _ = cmd.Flags().GetStringSlice("protected")
	}
	if cmd.Flags().Changed("log-level") {
		f.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	f.Debug, _ = cmd.Flags().GetBool("debug")
	return f
}
