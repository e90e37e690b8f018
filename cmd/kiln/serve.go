package main

import (
	"context"

	"github.com/aretw0/kiln"
	httpAdapter "github.com/aretw0/kiln/internal/adapters/http"
	"github.com/aretw0/kiln/internal/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection and metrics HTTP server",
	Long: `Loads the extensions, optionally materializes the entry point and serves the
unit registry, the transformation outcomes, the loaded extensions and the
Prometheus metrics over HTTP until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, err := cli.CreateRuntime(flagsFrom(cmd), kiln.WithRegisterer(prometheus.DefaultRegisterer))
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := cfg.MetricsAddr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		logger := cli.CreateLogger(cfg)

		rt.Start()
		if materialize, _ := cmd.Flags().GetBool("materialize"); materialize {
			if _, err := rt.Materialize(cfg.EntrySymbol); err != nil {
				logger.Warn("Entry point did not materialize", "entry", cfg.EntrySymbol, "err", err)
			}
		}

		handler := httpAdapter.NewHandler(rt, httpAdapter.Options{
			Version:  kiln.Version,
			Gatherer: prometheus.DefaultGatherer,
			Logger:   logger,
		})

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.Serve(ctx, addr, handler, logger, nil)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address; defaults to metrics_addr from the configuration")
	serveCmd.Flags().Bool("materialize", false, "Materialize the entry point before serving")
}
