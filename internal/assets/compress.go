package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// compressibleExts are text formats worth serving precompressed
var compressibleExts = []string{".js", ".css", ".map", ".svg", ".json", ".html", ".txt"}

type encoder struct {
	ext       string
	newWriter func(io.Writer) (io.WriteCloser, error)
}

var encoders = []encoder{
	{
		ext: ".gz",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestCompression)
		},
	},
	{
		ext: ".zst",
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		},
	},
}

// compressOutputs writes .gz and .zst siblings for every compressible output
// so a static file server can pick one by Accept-Encoding.
func compressOutputs(outputDir string, paths []string) error {
	count := 0
	for _, p := range paths {
		if !slices.Contains(compressibleExts, filepath.Ext(p)) {
			continue
		}

		src := filepath.Join(outputDir, filepath.FromSlash(p))
		for _, enc := range encoders {
			if err := compressFile(src, src+enc.ext, enc.newWriter); err != nil {
				return fmt.Errorf("failed to compress %s: %w", p, err)
			}
		}
		count++
	}

	log.Debug().Int("files", count).Msg("Compressed assets")
	return nil
}

func compressFile(srcPath, dstPath string, newWriter func(io.Writer) (io.WriteCloser, error)) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	enc, err := newWriter(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		os.Remove(dstPath) // Clean up partial file
		return err
	}

	// Close encoder to flush
	if err := enc.Close(); err != nil {
		os.Remove(dstPath)
		return err
	}

	return dst.Close()
}
