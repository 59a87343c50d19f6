package assets

import (
	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/packbuild/internal/entries"
)

// fileLoaderExts are copied into the output directory and referenced by URL
var fileLoaderExts = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
}

// buildOptions maps the pipeline configuration onto esbuild. Output names
// follow js/[name]-[hash].js, js/[name]-[hash].chunk.js and
// css/[name]-[hash].css, the hash is omitted from entries unless content
// hashing is enabled.
func (p *Pipeline) buildOptions(list []entries.Entry) api.BuildOptions {
	hash := cond(p.config.ContentHash(), "-[hash]", "")

	entryPoints := make([]api.EntryPoint, 0, len(list))
	for _, entry := range list {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  entry.Path,
			OutputPath: entry.Name,
		})
	}

	loaders := map[string]api.Loader{
		".js":   api.LoaderJSX,
		".jsx":  api.LoaderJSX,
		".ts":   api.LoaderTS,
		".tsx":  api.LoaderTSX,
		".css":  api.LoaderCSS,
		".json": api.LoaderJSON,
	}
	for _, ext := range fileLoaderExts {
		loaders[ext] = api.LoaderFile
	}

	nodeEnv := cond(p.config.IsProduction(), "production", "development")

	return api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       p.root,
		Bundle:              true,
		Splitting:           true,
		Write:               true,
		JSX:                 api.JSXAutomatic,
		Outdir:              p.config.OutputPath(),
		EntryNames:          "[ext]/[name]" + hash,
		ChunkNames:          "[ext]/[name]-[hash].chunk",
		AssetNames:          "static/[name]-[hash]",
		PublicPath:          p.config.PublicPath(),
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Loader:              loaders,
		ResolveExtensions:   []string{".js", ".jsx", ".ts", ".tsx"},
		NodePaths:           p.config.ModulePaths(),
		Define: map[string]string{
			"process.env.NODE_ENV": `"` + nodeEnv + `"`,
		},
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
