// Package tile retrieves single rectangular windows from raster files,
// retrying transient read failures up to a bounded attempt budget.
package tile

import (
	"errors"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"segtile/internal/raster"
	"segtile/internal/retry"
)

// DefaultMaxAttempts is the total attempt budget when none is configured.
const DefaultMaxAttempts = 5

// Reader reads tiles from a raster source with bounded retries.
type Reader struct {
	src      raster.Source
	attempts int
	log      *slog.Logger
}

// Option customizes a Reader.
type Option func(*Reader)

// WithMaxAttempts sets the total attempt budget, including the first attempt.
func WithMaxAttempts(n int) Option {
	return func(r *Reader) { r.attempts = n }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) { r.log = log }
}

// NewReader returns a Reader over src with a default budget of
// DefaultMaxAttempts attempts.
func NewReader(src raster.Source, opts ...Option) *Reader {
	r := &Reader{
		src:      src,
		attempts: DefaultMaxAttempts,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read fetches the window from the file at path. I/O-classified failures
// are retried without delay up to the attempt budget; every other failure
// is permanent and returned as-is. Each failed attempt before the last logs
// the path, the window, and the remaining retry count.
func (r *Reader) Read(win raster.Window, path string) (*mat.Dense, error) {
	var img *mat.Dense

	policy := retry.Policy{
		MaxAttempts: r.attempts,
		Classify:    isTransient,
		OnRetry: func(attempt int, err error) {
			r.log.Warn("failed to read tile, retrying",
				"path", path,
				"window", win.String(),
				"attempt", attempt,
				"retries_left", r.attempts-attempt,
				"error", err,
			)
		},
	}

	err := policy.Do(func() error {
		var readErr error
		img, readErr = r.src.ReadBand(path, win)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func isTransient(err error) bool {
	var readErr *raster.ReadError
	return errors.As(err, &readErr)
}
