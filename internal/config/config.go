package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	defaultSection = "default"
)

var (
	// ErrInvalidConfig indicates a missing or malformed configuration value
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrConfigRead indicates the configuration file could not be read or decoded
	ErrConfigRead = errors.New("failed to read configuration")
)

// Config is the explicit pipeline configuration. Relative paths are resolved
// against Root.
type Config struct {
	Env  string
	Root string

	// Source directory, e.g. "app/javascript"
	SourcePath string
	// Entry directory inside SourcePath, one entry point per top level file
	SourceEntryPath string
	// Extra module resolution roots
	AdditionalPaths []string

	PublicRootPath   string
	PublicOutputPath string
	ManifestPath     string
	// CDN host prepended to the public path, e.g. "https://cdn.example.com"
	AssetHost string

	UseContentHash bool
	Compile        bool
	MergeManifest  bool
	Compress       bool
	Minify         bool
	SourceMap      bool

	DevServer DevServer
}

type DevServer struct {
	Host  string
	Port  int
	HTTPS bool
}

// Addr returns the host:port the dev server listens on.
func (d DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Default returns the configuration used when a key is absent from the file.
func Default(env string) Config {
	return Config{
		Env:              env,
		Root:             ".",
		SourcePath:       "app/javascript",
		SourceEntryPath:  "packs",
		PublicRootPath:   "public",
		PublicOutputPath: "packs",
		ManifestPath:     "public/packs/manifest.json",
		Compile:          true,
		Minify:           env == EnvProduction,
		SourceMap:        true,
		DevServer: DevServer{
			Host: "localhost",
			Port: 3035,
		},
	}
}

// section mirrors one environment block of the YAML file. Pointers
// distinguish absent keys from zero values.
type section struct {
	SourcePath       *string   `yaml:"source_path"`
	SourceEntryPath  *string   `yaml:"source_entry_path"`
	AdditionalPaths  *[]string `yaml:"additional_paths"`
	PublicRootPath   *string   `yaml:"public_root_path"`
	PublicOutputPath *string   `yaml:"public_output_path"`
	ManifestPath     *string   `yaml:"manifest_path"`
	AssetHost        *string   `yaml:"asset_host"`
	UseContentHash   *bool     `yaml:"useContentHash"`
	Compile          *bool     `yaml:"compile"`
	MergeManifest    *bool     `yaml:"merge_manifest"`
	Compress         *bool     `yaml:"compress"`
	Minify           *bool     `yaml:"minify"`
	SourceMap        *bool     `yaml:"source_map"`
	DevServer        *struct {
		Host  *string `yaml:"host"`
		Port  *int    `yaml:"port"`
		HTTPS *bool   `yaml:"https"`
	} `yaml:"dev_server"`
}

// ResolveEnv picks the build environment from the explicit value or the
// SHAKAPACKER_ENV, RAILS_ENV and NODE_ENV variables, in that order.
func ResolveEnv(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, key := range []string{"SHAKAPACKER_ENV", "RAILS_ENV", "NODE_ENV"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return EnvDevelopment
}

// Load reads the YAML file at path and returns the validated configuration
// for env. Keys in the env section override the default section.
func Load(path, env string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigRead, err)
	}

	cfg, err := Parse(data, env)
	if err != nil {
		return Config{}, err
	}
	cfg.Root = rootFor(path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes a YAML document for env without validating it.
func Parse(data []byte, env string) (Config, error) {
	env = ResolveEnv(env)

	var sections map[string]section
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfigRead, err)
	}

	cfg := Default(env)
	minifySet, manifestSet := false, false
	for _, name := range []string{defaultSection, env} {
		s, ok := sections[name]
		if !ok {
			continue
		}
		if s.Minify != nil {
			minifySet = true
		}
		if s.ManifestPath != nil {
			manifestSet = true
		}
		cfg.apply(s)
	}

	if !minifySet {
		cfg.Minify = cfg.IsProduction()
	}

	// an explicit manifest_path in any section wins over the derived one
	if !manifestSet {
		cfg.ManifestPath = filepath.Join(cfg.PublicRootPath, cfg.PublicOutputPath, "manifest.json")
	}

	return cfg, nil
}

func (c *Config) apply(s section) {
	set(&c.SourcePath, s.SourcePath)
	set(&c.SourceEntryPath, s.SourceEntryPath)
	set(&c.AdditionalPaths, s.AdditionalPaths)
	set(&c.PublicRootPath, s.PublicRootPath)
	set(&c.PublicOutputPath, s.PublicOutputPath)
	set(&c.AssetHost, s.AssetHost)
	set(&c.UseContentHash, s.UseContentHash)
	set(&c.Compile, s.Compile)
	set(&c.MergeManifest, s.MergeManifest)
	set(&c.Compress, s.Compress)
	set(&c.Minify, s.Minify)
	set(&c.SourceMap, s.SourceMap)

	set(&c.ManifestPath, s.ManifestPath)

	if s.DevServer != nil {
		set(&c.DevServer.Host, s.DevServer.Host)
		set(&c.DevServer.Port, s.DevServer.Port)
		set(&c.DevServer.HTTPS, s.DevServer.HTTPS)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// rootFor treats the parent of a "config" directory as the project root.
func rootFor(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == "config" {
		return filepath.Dir(dir)
	}
	return dir
}

// Validate fails fast on values that would produce a broken manifest.
func (c Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("%w: source_path is required", ErrInvalidConfig)
	}
	if c.SourceEntryPath == "" {
		return fmt.Errorf("%w: source_entry_path is required", ErrInvalidConfig)
	}
	if strings.Trim(c.PublicOutputPath, "/") == "" {
		return fmt.Errorf("%w: public_output_path is required", ErrInvalidConfig)
	}
	if filepath.IsAbs(c.PublicOutputPath) {
		return fmt.Errorf("%w: public_output_path must be relative to public_root_path", ErrInvalidConfig)
	}
	if c.PublicRootPath == "" {
		return fmt.Errorf("%w: public_root_path is required", ErrInvalidConfig)
	}
	if name := c.ManifestFileName(); name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("%w: manifest_path must name a file", ErrInvalidConfig)
	}
	if c.AssetHost != "" && !strings.Contains(c.AssetHost, "://") && !strings.HasPrefix(c.AssetHost, "//") {
		return fmt.Errorf("%w: asset_host must be an absolute URL", ErrInvalidConfig)
	}
	if c.DevServer.Port < 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("%w: dev_server.port out of range", ErrInvalidConfig)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ContentHash reports whether output file names carry a content hash.
// Production builds always do.
func (c Config) ContentHash() bool {
	return c.IsProduction() || c.UseContentHash
}

func (c Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// SourceDir is the resolved source path.
func (c Config) SourceDir() string {
	return c.resolve(c.SourcePath)
}

// EntryDir is the directory scanned for entry points.
func (c Config) EntryDir() string {
	return filepath.Join(c.SourceDir(), c.SourceEntryPath)
}

// OutputPath is the directory compiled assets are written to.
func (c Config) OutputPath() string {
	return filepath.Join(c.resolve(c.PublicRootPath), c.PublicOutputPath)
}

// PublicPathWithoutCDN is the URL prefix assets are served under, e.g. "/packs/".
func (c Config) PublicPathWithoutCDN() string {
	return "/" + strings.Trim(filepath.ToSlash(c.PublicOutputPath), "/") + "/"
}

// PublicPath is PublicPathWithoutCDN with the asset host prepended when configured.
func (c Config) PublicPath() string {
	if c.AssetHost == "" {
		return c.PublicPathWithoutCDN()
	}
	return strings.TrimRight(c.AssetHost, "/") + c.PublicPathWithoutCDN()
}

// ManifestFileName is the base name of ManifestPath.
func (c Config) ManifestFileName() string {
	return filepath.Base(c.ManifestPath)
}

// ManifestFile is where the manifest is written, inside the output path.
func (c Config) ManifestFile() string {
	return filepath.Join(c.OutputPath(), c.ManifestFileName())
}

// ModulePaths returns the module resolution roots: the source path, any
// additional paths, then node_modules.
func (c Config) ModulePaths() []string {
	paths := []string{c.SourceDir()}
	for _, p := range c.AdditionalPaths {
		paths = append(paths, c.resolve(p))
	}
	return append(paths, c.resolve("node_modules"))
}
