package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt-g-everett/framefed/remote"
	"github.com/matt-g-everett/framefed/stream"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [frame...]",
		Short: "Resolve and mount frames once, reporting each outcome",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			frames, err := parseFrameArgs(args, cfg.Playback.FrameCount)
			if err != nil {
				return err
			}

			e := newEngine(cfg, logger)
			rows := make([][]string, 0, len(frames))
			failed := 0
			for _, n := range frames {
				d := e.entries.Descriptor(n - 1)
				e.registry.Ensure(d)
				path := remote.ModulePath(d.Name, cfg.Remote.Export)

				started := time.Now()
				pixels, err := resolveAndMount(cmd, e, path)
				elapsed := time.Since(started).Round(time.Millisecond)

				attempts, result := "1", "ok"
				if err != nil {
					failed++
					result = err.Error()
					var rerr *remote.ResolveError
					if errors.As(err, &rerr) {
						attempts = strconv.Itoa(rerr.Attempts)
						result = remote.KindOf(err).String() + ": " + rerr.Err.Error()
					}
				}
				rows = append(rows, []string{strconv.Itoa(n), path, attempts, pixels, elapsed.String(), result})
			}

			headers := []string{"Frame", "Module", "Attempts", "Pixels", "Elapsed", "Result"}
			aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			if failed > 0 {
				return fmt.Errorf("%d of %d frame(s) failed to resolve", failed, len(frames))
			}
			return nil
		},
	}
}

func resolveAndMount(cmd *cobra.Command, e *engine, path string) (string, error) {
	mod, err := e.resolver.Resolve(cmd.Context(), path)
	if err != nil {
		return "-", err
	}
	surface := stream.NewSurface()
	if err := mod.Mount(surface); err != nil {
		return "-", fmt.Errorf("mount: %w", err)
	}
	f, _, err := surface.Snapshot()
	if err != nil {
		return "-", fmt.Errorf("parse mounted frame: %w", err)
	}
	return fmt.Sprintf("%dx%d", f.Width, f.Height), nil
}

// parseFrameArgs parses 1-based frame numbers, defaulting to frame 1.
func parseFrameArgs(args []string, frameCount int) ([]int, error) {
	if len(args) == 0 {
		return []int{1}, nil
	}
	frames := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("frame %q is not a number", arg)
		}
		if n < 1 || n > frameCount {
			return nil, fmt.Errorf("frame %d is outside 1..%d", n, frameCount)
		}
		frames = append(frames, n)
	}
	return frames, nil
}
