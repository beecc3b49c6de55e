// Package cli wires the extraction pipeline into the segtile command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"segtile/internal/config"
	"segtile/internal/extract"
	"segtile/internal/manifest"
	"segtile/internal/pipeline"
	"segtile/internal/raster"
	"segtile/internal/storage"
	"segtile/internal/tile"
	"segtile/internal/watch"
)

// Root carries the shared dependencies of all commands.
type Root struct {
	Config *config.Config
	Log    *slog.Logger
	Store  *storage.Store
}

// NewRoot builds the command context.
func NewRoot(cfg *config.Config, log *slog.Logger, store *storage.Store) *Root {
	return &Root{Config: cfg, Log: log, Store: store}
}

// newPipeline assembles the raster source, tile reader, extractor and
// worker pipeline from configuration. The returned cleanup releases the
// raster environment and stops the workers.
func (r *Root) newPipeline(ctx context.Context, parallel int, dryRun bool) (*pipeline.Pipeline, func()) {
	src := raster.NewMagickSource(r.Config.Raster)

	reader := tile.NewReader(src,
		tile.WithMaxAttempts(r.Config.Raster.MaxAttempts),
		tile.WithLogger(r.Log),
	)

	var writer extract.BandWriter
	if !dryRun {
		writer = src
	}
	processor := extract.New(r.Log, reader, writer, r.Store)

	if parallel < 1 {
		parallel = r.Config.Processing.ParallelWindows
	}
	pipe := pipeline.New(ctx, parallel, r.Log, r.Store, processor)

	return pipe, func() {
		pipe.Stop()
		src.Close()
	}
}

// submitManifest submits one job per manifest window to pipe, waiting for
// queue slots so large manifests never outrun the workers. It returns the
// number of jobs submitted.
func (r *Root) submitManifest(ctx context.Context, pipe *pipeline.Pipeline, m *manifest.Manifest, manifestPath, outputDir string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(manifestPath), filepath.Ext(manifestPath))
	for i, win := range m.Windows {
		job := pipeline.Job{
			ID:           fmt.Sprintf("%s-w%d", base, i),
			ManifestPath: manifestPath,
			Manifest:     m,
			Window:       win,
			OutputDir:    outputDir,
		}
		if err := pipe.SubmitWait(ctx, job); err != nil {
			return i, errors.Wrapf(err, "submit window %s", win)
		}
	}
	return len(m.Windows), nil
}

// runManifest extracts every window of one manifest and returns the first
// failure, if any.
func (r *Root) runManifest(ctx context.Context, manifestPath, outputDir string, parallel int, dryRun bool) error {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	pipe, cleanup := r.newPipeline(ctx, parallel, dryRun)
	defer cleanup()

	// Sized to the batch so no result is dropped before it is read.
	results, unsub := pipe.SubscribeBuffered(len(m.Windows))
	defer unsub()

	submitted, err := r.submitManifest(ctx, pipe, m, manifestPath, outputDir)
	if err != nil {
		return err
	}

	var firstErr error
	for done := 0; done < submitted; done++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			if res.Error != nil && firstErr == nil {
				firstErr = errors.Wrapf(res.Error, "job %s", res.Job.ID)
			}
		}
	}
	return firstErr
}

// watchSpool feeds every manifest dropped into the spool directory to pipe
// until ctx is cancelled.
func (r *Root) watchSpool(ctx context.Context, pipe *pipeline.Pipeline, spoolDir, outputDir string) error {
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return err
	}

	watcher, err := watch.NewSpoolWatcher(spoolDir, r.Log)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.Log.Info("manifest spooled", "path", ev.Path)
			m, err := manifest.Load(ev.Path)
			if err != nil {
				r.Log.Error("spooled manifest rejected", "path", ev.Path, "error", err)
				continue
			}
			if _, err := r.submitManifest(ctx, pipe, m, ev.Path, outputDir); err != nil {
				r.Log.Error("spooled manifest rejected", "path", ev.Path, "error", err)
			}
		}
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
