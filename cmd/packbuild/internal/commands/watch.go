package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/packbuild/internal/assets"
)

type WatchCmd struct{}

func (w *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	log, cfg, err := globals.setup()
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("env", cfg.Env).Msg("Starting watcher")

	pipeline, err := assets.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	return pipeline.Watch(ctx)
}
