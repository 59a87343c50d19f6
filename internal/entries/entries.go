package entries

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEntryDirectory indicates the entry directory could not be read
	ErrEntryDirectory = errors.New("failed to read entry directory")
	// ErrNoEntries indicates the entry directory holds no files
	ErrNoEntries = errors.New("no entry points found")
	// ErrDuplicateEntry indicates two files map to the same entry name
	ErrDuplicateEntry = errors.New("duplicate entry point name")
)

// Entry is one named build unit backed by a top level source file.
type Entry struct {
	Name string
	Path string
}

// Discover returns one entry per regular, non hidden file directly inside
// dir, named by the file name without its extension, in lexical order.
func Discover(dir string) ([]Entry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntryDirectory, err)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntryDirectory, err)
	}

	seen := make(map[string]string)
	var entries []Entry
	for _, dirent := range dirents {
		// hidden files such as .DS_Store or .gitkeep are never entry points
		if !dirent.Type().IsRegular() || strings.HasPrefix(dirent.Name(), ".") {
			continue
		}

		name := strings.TrimSuffix(dirent.Name(), filepath.Ext(dirent.Name()))
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %q", ErrDuplicateEntry, prev, dirent.Name(), name)
		}
		seen[name] = dirent.Name()

		entries = append(entries, Entry{
			Name: name,
			Path: filepath.Join(abs, dirent.Name()),
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoEntries, abs)
	}

	return entries, nil
}

// Names returns the entry names in order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
