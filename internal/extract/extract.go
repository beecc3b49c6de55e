// Package extract implements the windowed extraction processor: assemble
// the window's image set, prepare it per task, and write the filtered
// planes to disk.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"segtile/internal/imageset"
	"segtile/internal/pipeline"
	"segtile/internal/raster"
	"segtile/internal/segment"
	"segtile/internal/storage"
)

// BandWriter persists one 2-D plane to disk.
type BandWriter interface {
	WriteBand(path string, img *mat.Dense) error
}

// Extractor processes one window per job.
type Extractor struct {
	log    *slog.Logger
	reader imageset.TileReader
	writer BandWriter
	store  *storage.Store
}

// New returns an Extractor. writer may be nil to skip writing planes (the
// ledger still records scales and counts); store may be nil to skip the
// ledger.
func New(log *slog.Logger, reader imageset.TileReader, writer BandWriter, store *storage.Store) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log, reader: reader, writer: writer, store: store}
}

// Process assembles the job's window and prepares every declared task. The
// first failure aborts the job; there is no partial-result mode.
func (e *Extractor) Process(ctx context.Context, job pipeline.Job) pipeline.Result {
	if err := ctx.Err(); err != nil {
		return pipeline.Result{Job: job, Error: err}
	}

	assembler := imageset.NewAssembler(e.reader, e.log)
	images, err := assembler.Assemble(job.Manifest.Images, job.Window)
	if err != nil {
		var readErr *raster.ReadError
		if errors.As(err, &readErr) && e.store != nil {
			_ = e.store.RecordReadFailure(readErr.Path, readErr.Window.String(), readErr.Err.Error())
		}
		return pipeline.Result{Job: job, Error: err}
	}

	tasks, err := job.Manifest.BuildTasks()
	if err != nil {
		return pipeline.Result{Job: job, Error: err}
	}

	written := 0
	for _, task := range tasks {
		prepared, scale, err := segment.Prepare(task, images)
		if err != nil {
			return pipeline.Result{Job: job, Error: err}
		}

		planes := 0
		for _, channel := range prepared.Channels() {
			zs, _ := prepared.Channel(channel)
			planes += len(zs)
		}

		if e.store != nil {
			_ = e.store.RecordTaskResult(storage.TaskResultRecord{
				JobID:    job.ID,
				TaskID:   task.ID,
				ScaleRow: scale.Row,
				ScaleCol: scale.Col,
				Channels: prepared.Len(),
				Images:   planes,
			})
		}

		if e.writer != nil {
			n, err := e.writePlanes(job, task.ID, prepared)
			if err != nil {
				return pipeline.Result{Job: job, Error: err}
			}
			written += n
		}

		e.log.Debug("task prepared",
			"job", job.ID,
			"task", task.ID,
			"scale", scale.String(),
			"channels", prepared.Len(),
			"images", planes,
		)
	}

	return pipeline.Result{Job: job, Meta: map[string]any{
		"window":  job.Window.String(),
		"sources": len(job.Manifest.Images),
		"tasks":   len(tasks),
		"written": written,
	}}
}

func (e *Extractor) writePlanes(job pipeline.Job, taskID string, prepared imageset.ImageSet) (int, error) {
	dir := filepath.Join(job.OutputDir, job.ID, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	written := 0
	for _, channel := range prepared.Channels() {
		zs, _ := prepared.Channel(channel)
		for z, img := range zs {
			path := filepath.Join(dir, fmt.Sprintf("%s_z%d.tif", channel, z))
			if err := e.writer.WriteBand(path, img); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
