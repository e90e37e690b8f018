package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/spf13/cobra"
)

const interpreterModule = "github.com/traefik/yaegi"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print kiln, toolchain and interpreter versions",
	Long: `Print the kiln version together with the Go toolchain that built it and
the interpreter used for source extension packages. With --symbols, also list
the extension entry points compiled into this binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		symbols := extension.Registered()
		fmt.Fprintf(w, "kiln version %s\n", strings.TrimSpace(kiln.Version))
		fmt.Fprintf(w, "  go:          %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(w, "  interpreter: %s %s\n", interpreterModule, depVersion(interpreterModule))
		fmt.Fprintf(w, "  built-in extensions: %d\n", len(symbols))

		if show, _ := cmd.Flags().GetBool("symbols"); show {
			for _, s := range symbols {
				fmt.Fprintf(w, "    %s\n", s)
			}
		}
	},
}

func depVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "unknown"
}

func init() {
	versionCmd.Flags().Bool("symbols", false, "List built-in extension entry points")
	rootCmd.AddCommand(versionCmd)
}
