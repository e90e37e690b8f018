package main

import (
	"fmt"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the base program for consistency",
	Long: `Crawls the units reachable from the entry point and reports missing types,
broken hierarchies and methods whose frames cannot be computed. Nothing is made live.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := cli.CreateRuntime(flagsFrom(cmd))
		if err != nil {
			return err
		}
		defer rt.Close()

		rep := rt.Validate()
		if err := rep.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Program is valid: %d reachable units\n", len(rep.Reachable))
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			for _, name := range rep.Unreachable {
				fmt.Fprintf(out, "  unreachable: %s\n", unit.BinaryName(name))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("verbose", "v", false, "List the units nothing reachable references")
}
