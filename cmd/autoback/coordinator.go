package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/signalnine/autoback/internal/config"
	"github.com/signalnine/autoback/internal/coordinator"
	"github.com/signalnine/autoback/internal/diag"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the result listener that receives host notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadCoordinatorConfig(configPath)
		if err != nil {
			return err
		}
		closer := diag.Setup(cfg.DiagLog, verbose)
		defer closer.Close()

		srv, err := coordinator.NewServer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}
