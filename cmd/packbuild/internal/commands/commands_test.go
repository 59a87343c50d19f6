package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/packbuild/internal/assets"
	"github.com/wolfeidau/packbuild/internal/config"
	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/render"
)

const testManifest = `{
  "application.js": "/packs/js/application-5GHK2MQX.js",
  "entrypoints": {
    "application": {"assets": {"js": ["/packs/js/application-5GHK2MQX.js"], "css": ["/packs/css/application-5GHK2MQX.css"]}},
    "admin": {"assets": {"js": ["/packs/js/admin-7JQW3ZRT.js"], "css": []}}
  }
}`

func TestManifestCmd_print(t *testing.T) {
	m, err := manifest.Parse([]byte(testManifest))
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &ManifestCmd{}
	require.NoError(t, cmd.print(&buf, m))
	require.Equal(t, "application\n"+
		"  js   /packs/js/application-5GHK2MQX.js\n"+
		"  css  /packs/css/application-5GHK2MQX.css\n"+
		"admin\n"+
		"  js   /packs/js/admin-7JQW3ZRT.js\n", buf.String())

	buf.Reset()
	cmd = &ManifestCmd{Entries: []string{"missing"}}
	require.ErrorIs(t, cmd.print(&buf, m), manifest.ErrEntrypointNotFound)

	buf.Reset()
	cmd = &ManifestCmd{JSON: true}
	require.NoError(t, cmd.print(&buf, m))
	encoded, err := m.Encode()
	require.NoError(t, err)
	require.Equal(t, string(encoded), buf.String())
}

func TestValidateTLS(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")

	require.Error(t, validateTLS("", ""))
	require.Error(t, validateTLS(cert, key))

	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))
	require.NoError(t, validateTLS(cert, key))
}

func TestServeCmd_routes(t *testing.T) {
	cfg := config.Default(config.EnvDevelopment)
	cfg.Root = t.TempDir()

	jsDir := filepath.Join(cfg.OutputPath(), "js")
	require.NoError(t, os.MkdirAll(jsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jsDir, "application-5GHK2MQX.js"), []byte("console.log(1)"), 0o600))

	m, err := manifest.Parse([]byte(testManifest))
	require.NoError(t, err)
	renderer, err := render.NewFromManifest(cfg.ManifestFile(), m)
	require.NoError(t, err)

	cmd := &ServeCmd{Layout: render.DefaultLayout, DefaultPage: "application", CORSOrigins: []string{"*"}}
	handler, err := cmd.routes(zerolog.Nop(), cfg, renderer, false)
	require.NoError(t, err)

	t.Run("serves fingerprinted packs", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/packs/js/application-5GHK2MQX.js", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "console.log(1)", w.Body.String())
		require.Equal(t, "public, max-age=31536000, immutable", w.Header().Get("Cache-Control"))
	})

	t.Run("renders the default page at root", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `<script type="module" src="/packs/js/application-5GHK2MQX.js"></script>`)
	})

	t.Run("renders a page per entry", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `<script type="module" src="/packs/js/admin-7JQW3ZRT.js"></script>`)
	})

	t.Run("unknown page", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWatchAssets_buildsOnceAtStartup(t *testing.T) {
	cfg := config.Default(config.EnvDevelopment)
	cfg.Root = t.TempDir()
	cfg.SourceMap = false

	entry := filepath.Join(cfg.EntryDir(), "application.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("console.log(\"hello\");\n"), 0o600))

	pipeline, err := assets.New(cfg)
	require.NoError(t, err)

	var builds atomic.Int32
	pipeline.OnBuild(func(*manifest.Manifest) { builds.Add(1) })

	renderer, err := render.NewFromManifest(cfg.ManifestFile(), manifest.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr, err := watchAssets(ctx, pipeline, renderer)
	require.NoError(t, err)
	require.Equal(t, []string{"application"}, renderer.Manifest().Entrypoints())

	_, err = os.Stat(cfg.ManifestFile())
	require.NoError(t, err)

	// no source changed, so nothing else compiles
	time.Sleep(500 * time.Millisecond)
	require.EqualValues(t, 1, builds.Load())

	cancel()
	select {
	case err := <-watchErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchAssets_cancelledBeforeFirstBuild(t *testing.T) {
	cfg := config.Default(config.EnvDevelopment)
	cfg.Root = t.TempDir()

	entry := filepath.Join(cfg.EntryDir(), "application.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("export const = ;\n"), 0o600))

	pipeline, err := assets.New(cfg)
	require.NoError(t, err)
	renderer, err := render.NewFromManifest(cfg.ManifestFile(), manifest.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = watchAssets(ctx, pipeline, renderer)
	require.Error(t, err)
}
