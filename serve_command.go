package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matt-g-everett/framefed/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr, dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve built frame units over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Serve.Addr
			}
			if !cmd.Flags().Changed("dir") {
				dir = cfg.Serve.Dir
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return api.NewApi(addr, dir, logger).Serve(signalCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of built units")
	return cmd
}
