package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/packbuild/internal/config"
	"github.com/wolfeidau/packbuild/internal/logger"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string
	Env     string
}

// setup configures logging and loads the pipeline configuration.
func (g *Globals) setup() (zerolog.Logger, config.Config, error) {
	log := logger.Setup(g.Debug)

	cfg, err := config.Load(g.Config, config.ResolveEnv(g.Env))
	if err != nil {
		return log, config.Config{}, fmt.Errorf("failed to load config %s: %w", g.Config, err)
	}

	log.Debug().
		Str("env", cfg.Env).
		Str("entry_dir", cfg.EntryDir()).
		Str("output", cfg.OutputPath()).
		Str("public_path", cfg.PublicPath()).
		Bool("content_hash", cfg.ContentHash()).
		Msg("Loaded config")

	return log, cfg, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
