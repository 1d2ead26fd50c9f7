package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/engine/capture"
	"github.com/Faultbox/meshview/internal/logger"
	"github.com/Faultbox/meshview/internal/viewer"
)

// replayResult summarizes one replay.
type replayResult struct {
	Applied int
	Failed  int
}

func replayCmd(flags **config.Flags) *cobra.Command {
	var out, frame string

	cmd := &cobra.Command{
		Use:   "replay <log>",
		Short: "Apply a recorded message log headlessly and export the scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*flags)
			if err != nil {
				return err
			}
			defer logger.Sync()
			cfg.Viewer.Headless = true

			res, err := replay(cmd.Context(), cfg, args[0], out, frame)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d messages, %d failed\n", res.Applied, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "scene.msgpack", "Snapshot output file")
	cmd.Flags().StringVar(&frame, "frame", "", "Also write the final frame as PNG")
	return cmd
}

// replay feeds every message of the log at path to a fresh headless
// viewer, waiting for loads after each one, then exports the scene.
func replay(ctx context.Context, cfg *config.Config, path, out, frame string) (replayResult, error) {
	var res replayResult
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	v, err := viewer.New(ctx, cfg, viewer.WithLogger(logger.Log))
	if err != nil {
		return res, err
	}

	dec := msgpack.NewDecoder(f)
	for {
		raw, err := dec.DecodeRaw()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading message %d: %w", res.Applied+res.Failed, err)
		}
		if err := v.HandleMessage(raw); err != nil {
			res.Failed++
		} else {
			res.Applied++
		}
		if err := v.Settle(ctx); err != nil {
			return res, err
		}
	}
	v.Tick()

	if err := v.ExportFile(out); err != nil {
		return res, fmt.Errorf("exporting scene: %w", err)
	}
	logger.Info("scene exported", zap.String("file", out), zap.Int("applied", res.Applied), zap.Int("failed", res.Failed))

	if frame != "" {
		img, err := v.Renderer().Capture()
		if err != nil {
			return res, err
		}
		w, err := os.Create(frame)
		if err != nil {
			return res, err
		}
		defer w.Close()
		if err := capture.Encode(w, img, capture.FormatPNG); err != nil {
			return res, err
		}
	}
	return res, nil
}
