package main

import (
	"fmt"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/pkg/unit"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <unit>",
	Short: "Transform one unit and print it as YAML",
	Long:  `Loads the extensions, runs the unit through the transformation pipeline and prints the result, frames included.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := cli.CreateRuntime(flagsFrom(cmd))
		if err != nil {
			return err
		}
		defer rt.Close()

		name := unit.InternalName(args[0])
		if _, ok := rt.Unit(name); !ok {
			return fmt.Errorf("unit '%s' is not part of the base program", unit.BinaryName(name))
		}
		rt.Start()
		if _, err := rt.Root().Materialize(name); err != nil {
			return err
		}

		u, _ := rt.Unit(name)
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(u)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
