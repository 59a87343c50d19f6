package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()

	g, err := NewGenerator(Options{PublicPath: "/packs/"})
	require.NoError(t, err)
	return g
}

func TestNewGenerator_requiresPublicPath(t *testing.T) {
	_, err := NewGenerator(Options{})
	require.ErrorIs(t, err, ErrMissingPublicPath)
}

func TestGenerate_partitionsEntrypointFiles(t *testing.T) {
	g := newTestGenerator(t)

	m := g.Generate(nil, nil, []EntrypointFiles{
		{
			Name: "app",
			Files: []string{
				"js/app-abc123.js",
				"js/app-abc123.chunk.js",
				"css/app-abc123.css",
				"js/app.hot-update.js",
			},
		},
	})

	ep, err := m.Entrypoint("app")
	require.NoError(t, err)
	require.Equal(t, Entrypoint{Assets: Assets{
		JS:  []string{"/packs/js/app-abc123.js", "/packs/js/app-abc123.chunk.js"},
		CSS: []string{"/packs/css/app-abc123.css"},
	}}, ep)
}

func TestGenerate_lastFileWins(t *testing.T) {
	g := newTestGenerator(t)

	m := g.Generate(nil, []FileDescriptor{
		{Name: "application.js", Path: "/packs/js/application-1.js"},
		{Name: "logo.svg", Path: "/packs/static/logo-1.svg"},
		{Name: "application.js", Path: "/packs/js/application-2.js"},
	}, nil)

	path, ok := m.Lookup("application.js")
	require.True(t, ok)
	require.Equal(t, "/packs/js/application-2.js", path)
	require.Equal(t, []string{"application.js", "logo.svg"}, m.Names())
}

func TestGenerate_preservesOrder(t *testing.T) {
	g := newTestGenerator(t)

	m := g.Generate(nil, nil, []EntrypointFiles{
		{Name: "b", Files: []string{"a.js", "b.css", "c.js"}},
		{Name: "a", Files: []string{"z.js"}},
	})

	ep, err := m.Entrypoint("b")
	require.NoError(t, err)
	require.Equal(t, []string{"/packs/a.js", "/packs/c.js"}, ep.Assets.JS)
	require.Equal(t, []string{"/packs/b.css"}, ep.Assets.CSS)
	require.Equal(t, []string{"b", "a"}, m.Entrypoints())
}

func TestGenerate_emptyEntrypoint(t *testing.T) {
	g := newTestGenerator(t)

	m := g.Generate(nil, nil, []EntrypointFiles{{Name: "empty"}})

	raw, err := m.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"entrypoints":{"empty":{"assets":{"js":[],"css":[]}}}}`, string(raw))
}

func TestGenerate_partitionIsExclusive(t *testing.T) {
	g := newTestGenerator(t)

	files := []string{
		"js/a.js", "css/a.css", "js/a.js.map", "static/font.woff2",
		"css/a.css.js", "js/b.js.css", "js/x.hot-update.css",
	}
	m := g.Generate(nil, nil, []EntrypointFiles{{Name: "a", Files: files}})

	ep, err := m.Entrypoint("a")
	require.NoError(t, err)

	for _, js := range ep.Assets.JS {
		assert.NotContains(t, ep.Assets.CSS, js)
	}
	require.Equal(t, []string{"/packs/js/a.js", "/packs/css/a.css.js"}, ep.Assets.JS)
	require.Equal(t, []string{"/packs/css/a.css", "/packs/js/b.js.css"}, ep.Assets.CSS)
}

func TestGenerate_idempotent(t *testing.T) {
	g := newTestGenerator(t)

	files := []FileDescriptor{
		{Name: "application.js", Path: "/packs/js/application-abc.js"},
		{Name: "application.css", Path: "/packs/css/application-abc.css"},
	}
	entrypoints := []EntrypointFiles{
		{Name: "application", Files: []string{"js/application-abc.js", "css/application-abc.css"}},
		{Name: "admin", Files: []string{"js/admin-def.js"}},
	}

	first, err := g.Generate(New(), files, entrypoints).Encode()
	require.NoError(t, err)
	second, err := g.Generate(New(), files, entrypoints).Encode()
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestGenerate_doesNotModifySeed(t *testing.T) {
	g := newTestGenerator(t)

	seed := New()
	seed.Set("legacy.js", "/packs/js/legacy.js")
	seed.SetEntrypoints([]string{"old"}, map[string]Entrypoint{"old": {}})

	m := g.Generate(seed, []FileDescriptor{{Name: "application.js", Path: "/packs/js/application.js"}},
		[]EntrypointFiles{{Name: "application", Files: []string{"js/application.js"}}})

	require.Equal(t, []string{"legacy.js", "application.js"}, m.Names())
	require.Equal(t, []string{"application"}, m.Entrypoints())

	require.Equal(t, []string{"legacy.js"}, seed.Names())
	require.Equal(t, []string{"old"}, seed.Entrypoints())
}

func TestGenerate_duplicateEntrypointKeepsFirstPosition(t *testing.T) {
	g := newTestGenerator(t)

	m := g.Generate(nil, nil, []EntrypointFiles{
		{Name: "a", Files: []string{"one.js"}},
		{Name: "b", Files: []string{"b.js"}},
		{Name: "a", Files: []string{"two.js"}},
	})

	require.Equal(t, []string{"a", "b"}, m.Entrypoints())
	ep, err := m.Entrypoint("a")
	require.NoError(t, err)
	require.Equal(t, []string{"/packs/two.js"}, ep.Assets.JS)
}

func TestDropped(t *testing.T) {
	g := newTestGenerator(t)

	dropped := g.Dropped([]EntrypointFiles{
		{Name: "a", Files: []string{"js/a.js", "js/a.js.map", "css/a.css", "js/a.hot-update.json"}},
		{Name: "b", Files: []string{"static/b.woff2"}},
	})

	require.Equal(t, []string{"js/a.js.map", "static/b.woff2"}, dropped)
}
