package main

import (
	"context"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [args...]",
	Short: "Load the extensions and run the entry point",
	Long:  `Discovers the extension packages, loads them and invokes the entry point's main method with the remaining arguments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		return cli.Run(ctx, cli.RunOptions{
			Flags: flagsFrom(cmd),
			Quiet: quiet,
			Out:   cmd.OutOrStdout(),
		}, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner and system messages")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
