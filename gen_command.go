package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matt-g-everett/framefed/remote"
	"github.com/matt-g-everett/framefed/unitgen"
)

func newGenCommand(ctx *commandContext) *cobra.Command {
	var frame int
	var out string
	var opts unitgen.Options

	cmd := &cobra.Command{
		Use:   "gen <image>",
		Short: "Generate a frame unit from an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if frame < 1 {
				return fmt.Errorf("frame must be at least 1, got %d", frame)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			img, err := unitgen.Decode(f)
			if err != nil {
				return err
			}

			opts.Name = remote.RemoteName(frame - 1)
			opts.Export = cfg.Remote.Export
			src, err := unitgen.Generate(img, opts)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			return os.WriteFile(out, src, 0o644)
		},
	}

	cmd.Flags().IntVar(&frame, "frame", 1, "Frame number the unit mounts")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty")
	cmd.Flags().IntVar(&opts.Levels, "levels", 2, "Grey levels, 2 to 16")
	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", 0, "Downsample images wider than this")
	cmd.Flags().StringVar(&opts.Ramp, "ramp", "grey", "Palette gradient: grey, sepia or ember")
	cmd.Flags().BoolVar(&opts.UsePalette, "palette", false, "Resolve colours through the shared palette")
	return cmd
}
