package assets

import (
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/wolfeidau/packbuild/internal/entries"
	"github.com/wolfeidau/packbuild/internal/manifest"
)

// outputSet is a parsed metafile with output keys made relative to the
// output directory.
type outputSet struct {
	outputs map[string]OutputInfo
	// sorted relative output paths
	paths []string
}

// parseMetafile decodes the metafile and rewrites every output path (keys,
// chunk imports and css bundles) relative to outputDir. outputDir and
// entry points in the metafile are relative to the working directory.
func parseMetafile(raw string, outputDir string) (*outputSet, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metafile: %w", err)
	}

	prefix := strings.TrimSuffix(outputDir, "/") + "/"
	if outputDir == "." || outputDir == "" {
		prefix = ""
	}
	rel := func(p string) string {
		return strings.TrimPrefix(p, prefix)
	}

	set := &outputSet{outputs: make(map[string]OutputInfo, len(metadata.Outputs))}
	for key, info := range metadata.Outputs {
		imports := make([]ImportInfo, 0, len(info.Imports))
		for _, imp := range info.Imports {
			if !imp.External {
				imp.Path = rel(imp.Path)
			}
			imports = append(imports, imp)
		}
		info.Imports = imports
		if info.CSSBundle != "" {
			info.CSSBundle = rel(info.CSSBundle)
		}

		set.outputs[rel(key)] = info
		set.paths = append(set.paths, rel(key))
	}
	slices.Sort(set.paths)

	return set, nil
}

// entrypointFiles returns the raw output files for each entry in discovery
// order: the entry output, the chunks it statically imports depth first,
// then its css bundle. entryPoints maps an entry name to its input path as
// recorded in the metafile.
func (s *outputSet) entrypointFiles(list []entries.Entry, entryPoints map[string]string) []manifest.EntrypointFiles {
	groups := make([]manifest.EntrypointFiles, 0, len(list))

	for _, entry := range list {
		input := entryPoints[entry.Name]
		files := []string{}
		visited := make(map[string]bool)

		add := func(p string) {
			if p == "" || visited[p] {
				return
			}
			visited[p] = true
			files = append(files, p)
		}

		for _, p := range s.paths {
			info := s.outputs[p]
			if info.EntryPoint != input {
				continue
			}
			add(p)
			s.addDependencies(info, add, visited)
			add(info.CSSBundle)
		}

		groups = append(groups, manifest.EntrypointFiles{Name: entry.Name, Files: files})
	}

	return groups
}

// addDependencies follows static chunk imports, dynamic imports load lazily
// and are not part of an entry point.
func (s *outputSet) addDependencies(info OutputInfo, add func(string), visited map[string]bool) {
	for _, imp := range info.Imports {
		if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		chunk, exists := s.outputs[imp.Path]
		if !exists {
			continue
		}
		add(imp.Path)
		s.addDependencies(chunk, add, visited)
		add(chunk.CSSBundle)
	}
}

// emittedFiles names every output for the manifest. Entry outputs are named
// after their entry ("application.js"), copied assets by their output
// directory and source file name ("static/logo.svg"), source maps after the
// file they map ("application.js.map") and everything else by its relative
// output path.
func (s *outputSet) emittedFiles(list []entries.Entry, entryPoints map[string]string, publicPath string) []manifest.FileDescriptor {
	names := make(map[string]string)

	byInput := make(map[string]string, len(entryPoints))
	for _, entry := range list {
		byInput[entryPoints[entry.Name]] = entry.Name
	}

	for _, p := range s.paths {
		info := s.outputs[p]
		if info.EntryPoint == "" {
			continue
		}
		name, ok := byInput[info.EntryPoint]
		if !ok {
			continue
		}
		names[p] = name + path.Ext(p)
		if info.CSSBundle != "" {
			names[info.CSSBundle] = name + path.Ext(info.CSSBundle)
		}
	}

	for _, p := range s.paths {
		if _, ok := names[p]; ok {
			continue
		}
		if name, ok := assetName(p, s.outputs[p]); ok {
			names[p] = name
		}
	}

	files := make([]manifest.FileDescriptor, 0, len(s.paths))
	for _, p := range s.paths {
		name, ok := names[p]
		if !ok {
			name = p
			if base, found := strings.CutSuffix(p, ".map"); found {
				if mapped, ok := names[base]; ok {
					name = mapped + ".map"
				}
			}
		}
		files = append(files, manifest.FileDescriptor{Name: name, Path: publicPath + p})
	}

	return files
}

// assetName returns the unhashed name of an output copied from a single
// source file with the same extension, the way the file loader emits images
// and fonts. Chunks and bundles combine inputs or change extension and are
// left alone.
func assetName(p string, info OutputInfo) (string, bool) {
	if len(info.Inputs) != 1 {
		return "", false
	}
	for input := range info.Inputs {
		if path.Ext(input) != path.Ext(p) {
			return "", false
		}
		return path.Join(path.Dir(p), path.Base(input)), true
	}
	return "", false
}
