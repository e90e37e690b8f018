package main

import (
	"fmt"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "List the extension packages and the version conflict outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := cli.CreateRuntime(flagsFrom(cmd))
		if err != nil {
			return err
		}
		defer rt.Close()

		cands := rt.Survey()
		markdown, _ := cmd.Flags().GetBool("markdown")
		if !markdown {
			tui.PrintSurvey(cmd.OutOrStdout(), cands)
			return nil
		}

		out, err := tui.NewRenderer()(tui.SurveyMarkdown(cands))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modsCmd)
	modsCmd.Flags().Bool("markdown", false, "Render the report as a markdown table")
}
