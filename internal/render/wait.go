package render

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/packbuild/internal/manifest"
)

// WaitForManifest polls for the manifest with exponential backoff until it
// exists or maxWait elapses. Only a missing file is retried, a manifest that
// fails to decode is returned immediately.
func WaitForManifest(ctx context.Context, path string, maxWait time.Duration) (*manifest.Manifest, error) {
	operation := func() (*manifest.Manifest, error) {
		m, err := manifest.Read(path)
		if err == nil {
			return m, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("manifest", path).Msg("Waiting for manifest")
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(maxWait),
	)
}
