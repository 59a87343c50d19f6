package assets

import (
	"errors"
	"sync"

	"github.com/wolfeidau/packbuild/internal/config"
	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/telemetry"
)

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNotBuilt indicates no build has completed yet
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
)

// BuildMetadata is the subset of the esbuild metafile the pipeline reads.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
	// Inputs is keyed by source path relative to the working directory
	Inputs map[string]InputContrib `json:"inputs"`
}

type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// BuildHook is called with the manifest after every successful build.
type BuildHook func(m *manifest.Manifest)

// Pipeline manages the asset build process and manifest generation
type Pipeline struct {
	config    config.Config
	root      string
	generator *manifest.Generator
	metrics   *telemetry.Metrics
	manifest  *manifest.Manifest
	hooks     []BuildHook
	mu        sync.RWMutex
}
