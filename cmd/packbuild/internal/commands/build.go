package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/packbuild/internal/assets"
)

type BuildCmd struct {
	Clean bool `help:"remove the output directory before building" default:"false"`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log, cfg, err := globals.setup()
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("env", cfg.Env).Msg("Starting build")

	if b.Clean {
		log.Info().Str("output", cfg.OutputPath()).Msg("Removing output directory")
		if err := os.RemoveAll(cfg.OutputPath()); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
	}

	pipeline, err := assets.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to load assets pipeline: %w", err)
	}

	if err := pipeline.Build(ctx); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	return nil
}
