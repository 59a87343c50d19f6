package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"maps"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/telemetry"
)

// DefaultLayout is the template rendered when no templates are configured.
const DefaultLayout = "layout"

//go:embed templates/*.html
var defaultTemplates embed.FS

// ErrNoTemplate indicates Handler was used without any template loaded
var ErrNoTemplate = errors.New("template not loaded")

type options struct {
	templatePath string
	templateDir  string
	funcs        template.FuncMap
	assetHost    string
}

type Option func(*options)

// WithTemplate loads a single template file.
func WithTemplate(path string) Option {
	return func(o *options) { o.templatePath = path }
}

// WithTemplateDir loads every *.html template in dir.
func WithTemplateDir(dir string) Option {
	return func(o *options) { o.templateDir = dir }
}

// WithFuncs adds template functions, overriding the built in ones on conflict.
func WithFuncs(funcs template.FuncMap) Option {
	return func(o *options) { o.funcs = funcs }
}

// WithAssetHost prefixes every manifest URL with a CDN host.
func WithAssetHost(host string) Option {
	return func(o *options) { o.assetHost = strings.TrimRight(host, "/") }
}

// Renderer turns manifest entry points into script and link tags
type Renderer struct {
	path      string
	assetHost string
	manifest  *manifest.Manifest
	modTime   time.Time
	tmpl      *template.Template
	metrics   *telemetry.Metrics
	mu        sync.RWMutex
}

// New loads the manifest at manifestPath and the configured templates.
func New(manifestPath string, opts ...Option) (*Renderer, error) {
	r, err := NewFromManifest(manifestPath, manifest.New(), opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFromManifest uses an already loaded manifest, manifestPath is only used by Reload.
func NewFromManifest(manifestPath string, m *manifest.Manifest, opts ...Option) (*Renderer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	r := &Renderer{
		path:      manifestPath,
		assetHost: o.assetHost,
		manifest:  m,
		metrics:   telemetry.GetMetrics(),
	}

	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
		"javascript_pack_tag": r.JavascriptPackTag,
		"stylesheet_pack_tag": r.StylesheetPackTag,
		"asset_path":          r.AssetPath,
	}

	// Merge custom functions
	maps.Copy(funcs, o.funcs)

	var err error
	switch {
	case o.templatePath != "":
		r.tmpl, err = template.New(o.templatePath).Funcs(funcs).ParseFiles(o.templatePath)
	case o.templateDir != "":
		r.tmpl, err = template.New(o.templateDir).Funcs(funcs).ParseGlob(o.templateDir + "/*.html")
	default:
		r.tmpl, err = template.New(DefaultLayout).Funcs(funcs).ParseFS(defaultTemplates, "templates/*.html")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return r, nil
}

// Reload re-reads the manifest from disk, the current one is kept on error.
// The modification time comes from the opened file so it always matches the
// contents that were loaded.
func (r *Renderer) Reload() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload manifest: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to reload manifest: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to reload manifest: %w", err)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to reload manifest: %w", err)
	}

	r.swap(m, info.ModTime())
	return nil
}

// ReloadIfModified reloads the manifest when the file changed since the last
// load, for servers where a separate process runs the build.
func (r *Renderer) ReloadIfModified() error {
	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("failed to stat manifest: %w", err)
	}

	r.mu.RLock()
	unchanged := info.ModTime().Equal(r.modTime)
	r.mu.RUnlock()

	if unchanged {
		return nil
	}
	return r.Reload()
}

// Replace swaps in a manifest produced in process, e.g. by a watch build.
func (r *Renderer) Replace(m *manifest.Manifest) {
	r.swap(m, time.Time{})
}

// swap installs m and the modification time it was read at together.
func (r *Renderer) swap(m *manifest.Manifest, modTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.manifest = m
	r.modTime = modTime
	r.metrics.ManifestReloads.Add(context.Background(), 1)
}

// Manifest returns the manifest currently used for rendering.
func (r *Renderer) Manifest() *manifest.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// Scripts returns the script URLs for the entry points in order without duplicates.
func (r *Renderer) Scripts(names ...string) ([]string, error) {
	return r.collect(names, func(ep manifest.Entrypoint) []string { return ep.Assets.JS })
}

// Styles returns the style sheet URLs for the entry points in order without duplicates.
func (r *Renderer) Styles(names ...string) ([]string, error) {
	return r.collect(names, func(ep manifest.Entrypoint) []string { return ep.Assets.CSS })
}

func (r *Renderer) collect(names []string, pick func(manifest.Entrypoint) []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := []string{}
	seen := make(map[string]bool)
	for _, name := range names {
		ep, err := r.manifest.Entrypoint(name)
		if err != nil {
			return nil, err
		}
		for _, u := range pick(ep) {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, r.assetHost+u)
		}
	}
	return urls, nil
}

// AssetPath returns the public URL for a logical asset name such as "static/logo.svg".
func (r *Renderer) AssetPath(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.manifest.Lookup(name)
	if !ok {
		return "", fmt.Errorf("asset %q not found in manifest", name)
	}
	return r.assetHost + p, nil
}

// JavascriptPackTag renders module script tags for the entry points.
func (r *Renderer) JavascriptPackTag(names ...string) (template.HTML, error) {
	urls, err := r.Scripts(names...)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, u := range urls {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, `<script type="module" src="%s"></script>`, template.HTMLEscapeString(u))
	}
	return template.HTML(b.String()), nil //nolint:gosec
}

// StylesheetPackTag renders link tags for the entry points.
func (r *Renderer) StylesheetPackTag(names ...string) (template.HTML, error) {
	urls, err := r.Styles(names...)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, u := range urls {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, `<link rel="stylesheet" href="%s">`, template.HTMLEscapeString(u))
	}
	return template.HTML(b.String()), nil //nolint:gosec
}

// Handler returns an http.HandlerFunc that renders the given template and entrypoint with its assets
func (r *Renderer) Handler(templateName, title, entry string, contextFn func(ctx context.Context) any) (http.HandlerFunc, error) {
	if r.tmpl == nil || r.tmpl.Lookup(templateName) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, templateName)
	}

	if contextFn == nil {
		contextFn = func(ctx context.Context) any {
			return nil
		}
	}

	return func(w http.ResponseWriter, req *http.Request) {
		scripts, err := r.Scripts(entry)
		if err != nil {
			log.Error().Err(err).Str("entry", entry).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		styles, err := r.Styles(entry)
		if err != nil {
			log.Error().Err(err).Str("entry", entry).Msg("Failed to load styles")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := map[string]any{
			"Title":   title,
			"Entry":   entry,
			"Scripts": scripts,
			"Styles":  styles,
			"Context": contextFn(req.Context()),
		}

		// render to a buffer so a template error can still produce a 500
		var buf bytes.Buffer
		if err := r.tmpl.ExecuteTemplate(&buf, templateName, data); err != nil {
			log.Error().Err(err).Str("template", templateName).Msg("Failed to render template")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		r.metrics.PagesRenderedTotal.Add(req.Context(), 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}, nil
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return strings.TrimSpace(buf.String())
}
