package main

import (
	"fmt"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the type hierarchy as a Mermaid diagram",
	Long: `Prints the base program's super types and interfaces as a Mermaid graph.
With --materialize the entry point is made live first and the diagram marks
which units were defined and which failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, err := cli.CreateRuntime(flagsFrom(cmd))
		if err != nil {
			return err
		}
		defer rt.Close()

		overlay := &graph.Overlay{Entry: cfg.EntrySymbol}
		if materialize, _ := cmd.Flags().GetBool("materialize"); materialize {
			rt.Start()
			_, _ = rt.Materialize(cfg.EntrySymbol)
			for _, u := range rt.Units() {
				o, ok := rt.Outcome(u.Name)
				switch {
				case !ok:
				case o.Err != nil:
					overlay.Failed = append(overlay.Failed, u.Name)
				default:
					overlay.Defined = append(overlay.Defined, u.Name)
				}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(rt.Units(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("materialize", false, "Materialize the entry point and mark unit outcomes")
}
