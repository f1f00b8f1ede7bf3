package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matt-g-everett/framefed/build"
	"github.com/matt-g-everett/framefed/logging"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var opts build.Options

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build frame units in parallel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("concurrency") {
				opts.Concurrency = cfg.Build.Concurrency
			}
			if !flags.Changed("silent") {
				opts.Silent = cfg.Build.Silent
			}
			opts.FramesDir = cfg.Build.FramesDir
			opts.Command = cfg.Build.Command
			opts.LockFile = cfg.Build.LockFile
			opts.Stdout = cmd.OutOrStdout()
			opts.Logger = logging.Component(logger, "build")

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			res, err := build.Build(signalCtx, opts)
			if res != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderBuildSummary(res))
			}
			var failure *build.Failure
			if errors.As(err, &failure) && failure.StderrTail != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "stderr tail:\n%s\n", failure.StderrTail)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 1, "First frame number")
	cmd.Flags().IntVar(&opts.End, "end", 0, "Last frame number, inferred from the frames directory when 0")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel builds")
	cmd.Flags().BoolVar(&opts.Silent, "silent", true, "Discard build stdout")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Mark every frame built without running anything")
	return cmd
}

func renderBuildSummary(res *build.Result) string {
	status := "ok"
	if res.Failure != nil {
		status = fmt.Sprintf("failed at frame-%04d", res.Failure.Frame)
	} else if res.Done != res.Total {
		status = "stopped"
	}
	headers := []string{"Range", "Total", "Done", "OK", "Failed", "Elapsed", "Status"}
	rows := [][]string{{
		fmt.Sprintf("%d-%d", res.Start, res.End),
		strconv.Itoa(res.Total),
		strconv.Itoa(res.Done),
		strconv.Itoa(res.OK),
		strconv.Itoa(res.Failed()),
		build.FormatDuration(res.Elapsed),
		status,
	}}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}
