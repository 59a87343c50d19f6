package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wolfeidau/packbuild/internal/manifest"
	"github.com/wolfeidau/packbuild/internal/render"
)

type ManifestCmd struct {
	Entries []string      `arg:"" optional:"" help:"entry points to show (default all)"`
	JSON    bool          `help:"print the raw manifest document" default:"false"`
	Wait    time.Duration `help:"wait this long for the manifest to be written" default:"0s"`
}

func (c *ManifestCmd) Run(ctx context.Context, globals *Globals) error {
	_, cfg, err := globals.setup()
	if err != nil {
		return err
	}

	var m *manifest.Manifest
	if c.Wait > 0 {
		m, err = render.WaitForManifest(ctx, cfg.ManifestFile(), c.Wait)
	} else {
		m, err = manifest.Read(cfg.ManifestFile())
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	return c.print(os.Stdout, m)
}

func (c *ManifestCmd) print(w io.Writer, m *manifest.Manifest) error {
	if c.JSON {
		data, err := m.Encode()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	names := c.Entries
	if len(names) == 0 {
		names = m.Entrypoints()
	}

	for _, name := range names {
		ep, err := m.Entrypoint(name)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\n", name)
		for _, js := range ep.Assets.JS {
			fmt.Fprintf(w, "  js   %s\n", js)
		}
		for _, css := range ep.Assets.CSS {
			fmt.Fprintf(w, "  css  %s\n", css)
		}
	}

	return nil
}
