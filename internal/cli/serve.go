package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/config"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/server"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			log := logger.Get(logger.ParseLevel(cfg.Log.Level))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logger.WithLogger(ctx, log)

			return server.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	config.RegisterFlags(cmd.Flags())
	return cmd
}
