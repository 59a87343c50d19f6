package manifest

import (
	"errors"
	"strings"
)

const (
	// HotUpdateMarker marks incremental rebuild artifacts that never belong in a manifest
	HotUpdateMarker = ".hot-update."

	ScriptExt = ".js"
	StyleExt  = ".css"
)

// ErrMissingPublicPath indicates no public path prefix was configured
var ErrMissingPublicPath = errors.New("public path is required")

type Options struct {
	// PublicPath is the URL prefix assets are served under, e.g. "/packs/"
	PublicPath string
}

func (o Options) Validate() error {
	if o.PublicPath == "" {
		return ErrMissingPublicPath
	}
	return nil
}

// Generator builds manifests from bundler output. It holds no state between calls.
type Generator struct {
	publicPath string
}

// NewGenerator creates a Generator with the given options
func NewGenerator(opts Options) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Generator{publicPath: opts.PublicPath}, nil
}

// PublicPath returns the configured URL prefix.
func (g *Generator) PublicPath() string {
	return g.publicPath
}

// Generate merges the emitted files and entry point groups into a copy of seed.
//
// Each file sets manifest[name] = path, the last file for a name wins. Each
// entry point is partitioned into scripts and styles by extension with
// hot-update artifacts removed and the public path prepended. Files with any
// other extension are excluded. The seed is never modified.
func (g *Generator) Generate(seed *Manifest, files []FileDescriptor, entrypoints []EntrypointFiles) *Manifest {
	m := seed.Clone()

	for _, file := range files {
		m.Set(file.Name, file.Path)
	}

	names := make([]string, 0, len(entrypoints))
	groups := make(map[string]Entrypoint, len(entrypoints))
	for _, ep := range entrypoints {
		if _, ok := groups[ep.Name]; !ok {
			names = append(names, ep.Name)
		}
		groups[ep.Name] = Entrypoint{Assets: Assets{
			JS:  g.filter(ep.Files, ScriptExt),
			CSS: g.filter(ep.Files, StyleExt),
		}}
	}
	m.SetEntrypoints(names, groups)

	return m
}

// Dropped returns the raw entry point files Generate would exclude because
// their extension is neither a script nor a style sheet.
func (g *Generator) Dropped(entrypoints []EntrypointFiles) []string {
	var dropped []string
	for _, ep := range entrypoints {
		for _, file := range ep.Files {
			if strings.Contains(file, HotUpdateMarker) {
				continue
			}
			if !strings.HasSuffix(file, ScriptExt) && !strings.HasSuffix(file, StyleExt) {
				dropped = append(dropped, file)
			}
		}
	}
	return dropped
}

func (g *Generator) filter(files []string, ext string) []string {
	out := []string{}
	for _, file := range files {
		if !strings.HasSuffix(file, ext) || strings.Contains(file, HotUpdateMarker) {
			continue
		}
		out = append(out, g.publicPath+file)
	}
	return out
}
