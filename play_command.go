package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/matt-g-everett/framefed/logging"
	"github.com/matt-g-everett/framefed/stream"
	"github.com/matt-g-everett/framefed/tui"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var headless bool
	var start int

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the animation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start") {
				cfg.Playback.StartFrame = start - 1
			}
			logger, err := ctx.logger(!headless)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			e := newEngine(cfg, logger)
			var client mqtt.Client
			if e.needsMQTT() {
				client, err = connectMQTT(cfg.Mqtt, logging.Component(logger, "mqtt"))
				if err != nil {
					return err
				}
				defer client.Disconnect(250)
			}

			a, err := e.newAudio(client)
			if err != nil {
				return err
			}
			sched, err := e.newScheduler(a)
			if err != nil {
				return err
			}
			defer sched.Close()

			if cfg.Stream.Enabled {
				streamer := stream.NewStreamer(client, e.surface, cfg.Mqtt.Topics.Stage, cfg.Stream.Interval(), logging.Component(logger, "stream"))
				go streamer.Run(signalCtx)
			}

			if headless {
				return playHeadless(signalCtx, sched, logger)
			}
			app := tui.NewApp(sched, e.surface, cfg.Audio.Volume)
			_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(signalCtx)).Run()
			if err != nil && signalCtx.Err() == nil {
				return fmt.Errorf("run shell: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Play without the terminal shell until interrupted")
	cmd.Flags().IntVar(&start, "start", 1, "Frame number to start from")
	return cmd
}

func playHeadless(ctx context.Context, sched tui.Player, logger *slog.Logger) error {
	if err := sched.Play(); err != nil {
		return err
	}
	<-ctx.Done()
	st := sched.State()
	logger.Info("stopping", slog.Int("frame", st.TargetIndex+1), slog.Int("mounted", st.MountedIndex+1))
	return nil
}
