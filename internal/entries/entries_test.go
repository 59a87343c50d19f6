package entries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("export {};\n"), 0o600))
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "application.tsx", "admin.ts", "vendor.js")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "components"), 0o755))
	writeFiles(t, filepath.Join(dir, "components"), "button.tsx")

	entries, err := Discover(dir)
	require.NoError(t, err)

	require.Equal(t, []string{"admin", "application", "vendor"}, Names(entries))
	require.Equal(t, filepath.Join(dir, "application.tsx"), entries[1].Path)
}

func TestDiscover_multipleDots(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "server.bundle.js")

	entries, err := Discover(dir)
	require.NoError(t, err)
	require.Equal(t, []Entry{{Name: "server.bundle", Path: filepath.Join(dir, "server.bundle.js")}}, entries)
}

func TestDiscover_skipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, ".DS_Store", ".gitkeep", "application.ts")

	entries, err := Discover(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"application"}, Names(entries))
}

func TestDiscover_errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		err   error
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			err:   ErrEntryDirectory,
		},
		{
			name:  "empty directory",
			setup: func(t *testing.T) string { return t.TempDir() },
			err:   ErrNoEntries,
		},
		{
			name: "only hidden files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFiles(t, dir, ".DS_Store", ".keep")
				return dir
			},
			err: ErrNoEntries,
		},
		{
			name: "duplicate names",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFiles(t, dir, "app.ts", "app.tsx")
				return dir
			},
			err: ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Discover(tt.setup(t))
			require.ErrorIs(t, err, tt.err)
		})
	}
}
