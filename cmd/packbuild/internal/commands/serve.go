package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/packbuild/internal/assets"
	"github.com/wolfeidau/packbuild/internal/config"
	httpmiddleware "github.com/wolfeidau/packbuild/internal/http"
	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/render"
	"github.com/wolfeidau/packbuild/internal/telemetry"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"listen address, defaults to dev_server host and port" default:"" env:"PACKBUILD_LISTEN"`
	Cert   string `help:"path to TLS cert file, required when dev_server.https is set" default:"" env:"PACKBUILD_TLS_CERT"`
	Key    string `help:"path to TLS key file, required when dev_server.https is set" default:"" env:"PACKBUILD_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"origins allowed to load packs" default:"*" env:"PACKBUILD_CORS_ORIGINS"`

	// Pages
	Templates   string        `help:"directory of *.html page templates, the built in layout is used when empty" default:"" type:"path"`
	Layout      string        `help:"template rendered for entry point pages" default:"layout"`
	DefaultPage string        `help:"entry point rendered at /" default:"application"`
	Wait        time.Duration `help:"how long to wait for an external build to write the manifest" default:"30s"`

	// Operational modes
	ExternalBuild bool `help:"do not compile, serve the manifest written by another process" default:"false" env:"PACKBUILD_EXTERNAL_BUILD"`
	Telemetry     bool `help:"enable OpenTelemetry export" default:"false" env:"PACKBUILD_TELEMETRY"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log, cfg, err := globals.setup()
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("env", cfg.Env).Msg("Starting dev server")

	if c.Telemetry {
		shutdown, err := telemetry.Init(ctx, "packbuild", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = telemetry.Noop
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	addr := c.Listen
	if addr == "" {
		addr = cfg.DevServer.Addr()
	}
	if cfg.DevServer.HTTPS {
		if err := validateTLS(c.Cert, c.Key); err != nil {
			return err
		}
	}

	external := c.ExternalBuild || !cfg.Compile

	renderOpts := []render.Option{render.WithAssetHost(cfg.AssetHost)}
	if c.Templates != "" {
		renderOpts = append(renderOpts, render.WithTemplateDir(c.Templates))
	}

	var (
		renderer *render.Renderer
		watchErr <-chan error
	)

	if external {
		log.Info().Str("manifest", cfg.ManifestFile()).Msg("Waiting for external build")

		m, err := render.WaitForManifest(ctx, cfg.ManifestFile(), c.Wait)
		if err != nil {
			return fmt.Errorf("manifest not available: %w", err)
		}
		renderer, err = render.NewFromManifest(cfg.ManifestFile(), m, renderOpts...)
		if err != nil {
			return err
		}
	} else {
		pipeline, err := assets.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to load assets pipeline: %w", err)
		}
		renderer, err = render.NewFromManifest(cfg.ManifestFile(), manifest.New(), renderOpts...)
		if err != nil {
			return err
		}

		watchErr, err = watchAssets(ctx, pipeline, renderer)
		if err != nil {
			return err
		}
	}

	handler, err := c.routes(log, cfg, renderer, external)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(addr, handler)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Bool("https", cfg.DevServer.HTTPS).Str("public_path", cfg.PublicPathWithoutCDN()).Msg("Serving packs")
		if cfg.DevServer.HTTPS {
			serveErr <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	case err := <-watchErr:
		if err != nil {
			return fmt.Errorf("asset watcher failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dev server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// routes serves the output directory under the public path and one page per
// entry point at /<entry>, with DefaultPage also at /.
func (c *ServeCmd) routes(log zerolog.Logger, cfg config.Config, renderer *render.Renderer, external bool) (http.Handler, error) {
	mux := http.NewServeMux()

	publicPath := cfg.PublicPathWithoutCDN()
	packs := http.StripPrefix(publicPath, http.FileServer(http.Dir(cfg.OutputPath())))
	mux.Handle(publicPath, httpmiddleware.Chain(packs,
		httpmiddleware.PackCORS(c.CORSOrigins),
		httpmiddleware.ImmutableAssets(),
	))

	for _, entry := range renderer.Manifest().Entrypoints() {
		page, err := renderer.Handler(c.Layout, entry, entry, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create page for %s: %w", entry, err)
		}
		mux.Handle("GET /"+entry, page)
		if entry == c.DefaultPage {
			mux.Handle("GET /{$}", page)
		}
	}

	var handler http.Handler = mux
	if external {
		handler = reloadManifest(renderer, handler)
	}

	return httpmiddleware.Chain(handler, httpmiddleware.RequestLogger(log)), nil
}

// watchAssets starts the watcher with renderer receiving every manifest and
// returns once the first watch build succeeded, so startup compiles once.
// Failed builds are logged by the pipeline and the wait continues until the
// sources compile or ctx is cancelled.
func watchAssets(ctx context.Context, pipeline *assets.Pipeline, renderer *render.Renderer) (<-chan error, error) {
	built := make(chan struct{})
	var once sync.Once
	pipeline.OnBuild(func(m *manifest.Manifest) {
		renderer.Replace(m)
		once.Do(func() { close(built) })
	})

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- pipeline.Watch(ctx)
	}()

	select {
	case <-built:
		return watchErr, nil
	case err := <-watchErr:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("asset watcher stopped before the first build: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reloadManifest picks up manifests written by an external build before each request.
func reloadManifest(renderer *render.Renderer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := renderer.ReloadIfModified(); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to reload manifest")
		}
		next.ServeHTTP(w, r)
	})
}

func validateTLS(cert, key string) error {
	if cert == "" || key == "" {
		return errors.New("TLS certificate and key are required when dev_server.https is set (--cert and --key)")
	}
	if _, err := os.Stat(cert); err != nil {
		return fmt.Errorf("TLS certificate not found at %s: %w", cert, err)
	}
	if _, err := os.Stat(key); err != nil {
		return fmt.Errorf("TLS key not found at %s: %w", key, err)
	}
	return nil
}
