package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const shakapackerYAML = `
default: &default
  source_path: app/javascript
  source_entry_path: packs
  public_root_path: public
  public_output_path: packs
  additional_paths:
    - app/assets
  useContentHash: false

development:
  <<: *default
  dev_server:
    host: 0.0.0.0
    port: 3036

test:
  <<: *default
  public_output_path: packs-test

production:
  <<: *default
  asset_host: https://cdn.example.com/
  compress: true
`

func TestParse_environments(t *testing.T) {
	tests := []struct {
		name           string
		env            string
		yaml           string
		publicPath     string
		withoutCDN     string
		contentHash    bool
		minify         bool
		compress       bool
		manifestPath   string
		devServerAddr  string
		additionalPath []string
	}{
		{
			name:           "development",
			env:            EnvDevelopment,
			publicPath:     "/packs/",
			withoutCDN:     "/packs/",
			manifestPath:   "public/packs/manifest.json",
			devServerAddr:  "0.0.0.0:3036",
			additionalPath: []string{"app/assets"},
		},
		{
			name:           "test overrides output path",
			env:            EnvTest,
			publicPath:     "/packs-test/",
			withoutCDN:     "/packs-test/",
			manifestPath:   "public/packs-test/manifest.json",
			devServerAddr:  "localhost:3035",
			additionalPath: []string{"app/assets"},
		},
		{
			name:           "production",
			env:            EnvProduction,
			publicPath:     "https://cdn.example.com/packs/",
			withoutCDN:     "/packs/",
			contentHash:    true,
			minify:         true,
			compress:       true,
			manifestPath:   "public/packs/manifest.json",
			devServerAddr:  "localhost:3035",
			additionalPath: []string{"app/assets"},
		},
		{
			name: "env output path keeps default manifest path",
			env:  EnvProduction,
			yaml: `
default:
  manifest_path: public/packs/assets-manifest.json
production:
  public_output_path: packs-prod
`,
			publicPath:    "/packs-prod/",
			withoutCDN:    "/packs-prod/",
			contentHash:   true,
			minify:        true,
			manifestPath:  "public/packs/assets-manifest.json",
			devServerAddr: "localhost:3035",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.yaml
			if doc == "" {
				doc = shakapackerYAML
			}
			cfg, err := Parse([]byte(doc), tt.env)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			require.Equal(t, tt.env, cfg.Env)
			require.Equal(t, tt.publicPath, cfg.PublicPath())
			require.Equal(t, tt.withoutCDN, cfg.PublicPathWithoutCDN())
			require.Equal(t, tt.contentHash, cfg.ContentHash())
			require.Equal(t, tt.minify, cfg.Minify)
			require.Equal(t, tt.compress, cfg.Compress)
			require.Equal(t, tt.manifestPath, cfg.ManifestPath)
			require.Equal(t, filepath.Base(tt.manifestPath), cfg.ManifestFileName())
			require.Equal(t, tt.devServerAddr, cfg.DevServer.Addr())
			require.Equal(t, tt.additionalPath, cfg.AdditionalPaths)
		})
	}
}

func TestParse_defaultsWhenEmpty(t *testing.T) {
	cfg, err := Parse([]byte("{}"), EnvDevelopment)
	require.NoError(t, err)
	require.Equal(t, Default(EnvDevelopment), cfg)
}

func TestParse_invalidYAML(t *testing.T) {
	_, err := Parse([]byte("default: [unterminated"), EnvDevelopment)
	require.ErrorIs(t, err, ErrConfigRead)
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("SHAKAPACKER_ENV", "")
	t.Setenv("RAILS_ENV", "")
	t.Setenv("NODE_ENV", "")

	require.Equal(t, EnvDevelopment, ResolveEnv(""))

	t.Setenv("NODE_ENV", "production")
	require.Equal(t, EnvProduction, ResolveEnv(""))

	t.Setenv("RAILS_ENV", "test")
	require.Equal(t, EnvTest, ResolveEnv(""))

	require.Equal(t, "staging", ResolveEnv("staging"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "empty source path", modify: func(c *Config) { c.SourcePath = "" }},
		{name: "empty entry path", modify: func(c *Config) { c.SourceEntryPath = "" }},
		{name: "empty public output path", modify: func(c *Config) { c.PublicOutputPath = "/" }},
		{name: "absolute public output path", modify: func(c *Config) { c.PublicOutputPath = "/var/packs" }},
		{name: "empty public root", modify: func(c *Config) { c.PublicRootPath = "" }},
		{name: "empty manifest path", modify: func(c *Config) { c.ManifestPath = "" }},
		{name: "relative asset host", modify: func(c *Config) { c.AssetHost = "cdn.example.com" }},
		{name: "bad port", modify: func(c *Config) { c.DevServer.Port = 70000 }},
	}

	require.NoError(t, Default(EnvDevelopment).Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(EnvDevelopment)
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad_resolvesPathsAgainstRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	path := filepath.Join(root, "config", "shakapacker.yml")
	require.NoError(t, os.WriteFile(path, []byte(shakapackerYAML), 0o600))

	cfg, err := Load(path, EnvDevelopment)
	require.NoError(t, err)

	require.Equal(t, root, cfg.Root)
	require.Equal(t, filepath.Join(root, "app", "javascript", "packs"), cfg.EntryDir())
	require.Equal(t, filepath.Join(root, "public", "packs"), cfg.OutputPath())
	require.Equal(t, filepath.Join(root, "public", "packs", "manifest.json"), cfg.ManifestFile())
	require.Equal(t, []string{
		filepath.Join(root, "app", "javascript"),
		filepath.Join(root, "app", "assets"),
		filepath.Join(root, "node_modules"),
	}, cfg.ModulePaths())
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), EnvDevelopment)
	require.ErrorIs(t, err, ErrConfigRead)
	require.ErrorIs(t, err, os.ErrNotExist)
}
