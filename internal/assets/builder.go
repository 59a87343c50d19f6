package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packbuild/internal/config"
	"github.com/wolfeidau/packbuild/internal/entries"
	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/wolfeidau/packbuild/internal/assets"

// New creates a new asset pipeline with the given configuration
func New(cfg config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg.Root = root

	generator, err := manifest.NewGenerator(manifest.Options{PublicPath: cfg.PublicPathWithoutCDN()})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:    cfg,
		root:      root,
		generator: generator,
		metrics:   telemetry.GetMetrics(),
	}, nil
}

// OnBuild registers a hook run after each successful build.
func (p *Pipeline) OnBuild(hook BuildHook) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hooks = append(p.hooks, hook)
}

// Manifest returns the manifest produced by the last successful build.
func (p *Pipeline) Manifest() (*manifest.Manifest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.manifest == nil {
		return nil, ErrNotBuilt
	}
	return p.manifest.Clone(), nil
}

// Build discovers entry points, runs esbuild once and writes the manifest
func (p *Pipeline) Build(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "assets.Build")
	defer span.End()

	list, err := entries.Discover(p.config.EntryDir())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	log.Info().Strs("entrypoints", entries.Names(list)).Str("env", p.config.Env).Msg("Building assets")

	started := time.Now()
	result := api.Build(p.buildOptions(list))

	if err := p.complete(ctx, list, &result, started); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Watch builds and then rebuilds on every source change until ctx is
// cancelled. Entry points are discovered once, adding a new entry file
// requires a restart.
func (p *Pipeline) Watch(ctx context.Context) error {
	list, err := entries.Discover(p.config.EntryDir())
	if err != nil {
		return err
	}

	opts := p.buildOptions(list)

	var started time.Time
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "packbuild-manifest",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				// errors are logged and counted in complete, the watcher keeps running
				_ = p.complete(ctx, list, result, started)
				return api.OnEndResult{}, nil
			})
		},
	})

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		for _, msg := range ctxErr.Errors {
			log.Error().Str("error", msg.Text).Msg("Build context error")
		}
		return fmt.Errorf("failed to create build context: %w", ErrBuildFailed)
	}
	defer buildCtx.Dispose()

	log.Info().Strs("entrypoints", entries.Names(list)).Str("env", p.config.Env).Msg("Watching assets")

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("Stopping asset watcher")

	return nil
}

// complete is the build completion hook: it turns esbuild output into the
// manifest, writes it and runs the registered hooks.
func (p *Pipeline) complete(ctx context.Context, list []entries.Entry, result *api.BuildResult, started time.Time) error {
	m, err := p.generate(ctx, list, result, started)
	if err != nil {
		return err
	}

	p.mu.RLock()
	hooks := p.hooks
	p.mu.RUnlock()

	for _, hook := range hooks {
		hook(m.Clone())
	}
	return nil
}

func (p *Pipeline) generate(ctx context.Context, list []entries.Entry, result *api.BuildResult, started time.Time) (*manifest.Manifest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	envAttr := metric.WithAttributes(attribute.String("env", p.config.Env))
	p.metrics.BuildsTotal.Add(ctx, 1, envAttr)
	defer func() {
		p.metrics.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), envAttr)
	}()

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Str("file", location(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("file", location(msg)).Msg("Build error")
		}
		p.metrics.BuildErrorsTotal.Add(ctx, 1, envAttr)
		return nil, ErrBuildFailed
	}

	outputDir, err := filepath.Rel(p.root, p.config.OutputPath())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}

	outputs, err := parseMetafile(result.Metafile, filepath.ToSlash(outputDir))
	if err != nil {
		return nil, err
	}

	inputs, err := p.entryInputs(list)
	if err != nil {
		return nil, err
	}

	groups := outputs.entrypointFiles(list, inputs)
	files := outputs.emittedFiles(list, inputs, p.generator.PublicPath())

	seed := manifest.New()
	if p.config.MergeManifest {
		seed, err = manifest.ReadSeed(p.config.ManifestFile())
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest seed: %w", err)
		}
	}

	m := p.generator.Generate(seed, files, groups)

	if dropped := p.generator.Dropped(groups); len(dropped) > 0 {
		log.Debug().Strs("files", dropped).Msg("Entrypoint files excluded from manifest")
		p.metrics.DroppedAssetsTotal.Add(ctx, int64(len(dropped)), envAttr)
	}

	if err := writeManifest(p.config.ManifestFile(), m); err != nil {
		return nil, err
	}

	if p.config.Compress {
		if err := compressOutputs(p.config.OutputPath(), outputs.paths); err != nil {
			return nil, err
		}
	}

	for _, out := range outputs.paths {
		log.Debug().Str("file", out).Int("bytes", outputs.outputs[out].Bytes).Msg("Built file")
	}

	p.metrics.ManifestEntrypoints.Record(ctx, int64(len(groups)), envAttr)
	p.manifest = m

	log.Info().
		Int("entrypoints", len(groups)).
		Int("files", len(files)).
		Dur("duration", time.Since(started)).
		Str("manifest", p.config.ManifestFile()).
		Msg("Assets built")

	return m, nil
}

// entryInputs maps entry names to their input paths as esbuild records them
// in the metafile, relative to the working directory with forward slashes.
func (p *Pipeline) entryInputs(list []entries.Entry) (map[string]string, error) {
	inputs := make(map[string]string, len(list))
	for _, entry := range list {
		rel, err := filepath.Rel(p.root, entry.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entry %s: %w", entry.Name, err)
		}
		inputs[entry.Name] = filepath.ToSlash(rel)
	}
	return inputs, nil
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}
