package extract

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"segtile/internal/manifest"
	"segtile/internal/pipeline"
	"segtile/internal/raster"
)

type stubReader struct {
	fail  map[string]bool
	reads int
}

func (r *stubReader) Read(win raster.Window, path string) (*mat.Dense, error) {
	r.reads++
	if r.fail[path] {
		return nil, &raster.ReadError{Path: path, Window: win, Err: errors.New("unreachable")}
	}
	img := mat.NewDense(int(win.Height), int(win.Width), nil)
	for i := 0; i < int(win.Height); i++ {
		for j := 0; j < int(win.Width); j++ {
			img.Set(i, j, float64(i*j))
		}
	}
	return img, nil
}

type recordingWriter struct {
	paths []string
	fail  bool
}

func (w *recordingWriter) WriteBand(path string, img *mat.Dense) error {
	if w.fail {
		return errors.New("disk full")
	}
	w.paths = append(w.paths, path)
	return nil
}

const sampleManifest = `
windows:
  - {x: 0, y: 0, width: 8, height: 8}
images:
  - {channel: DAPI, z_layer: 0, path: /data/dapi_z0.tif}
  - {channel: DAPI, z_layer: 1, path: /data/dapi_z1.tif}
tasks:
  - id: nuclei
    z_layers: [0, 1]
    inputs:
      - channel: DAPI
        preprocessing:
          - {name: downsample, params: {factor: 2}}
`

func testJob(t *testing.T) pipeline.Job {
	t.Helper()
	m, err := manifest.Parse([]byte(sampleManifest))
	require.NoError(t, err)
	return pipeline.Job{
		ID:        "job-1",
		Manifest:  m,
		Window:    m.Windows[0],
		OutputDir: t.TempDir(),
	}
}

func TestProcessWritesPreparedPlanes(t *testing.T) {
	writer := &recordingWriter{}
	e := New(nil, &stubReader{}, writer, nil)

	res := e.Process(context.Background(), testJob(t))
	require.NoError(t, res.Error)

	assert.Equal(t, 1, res.Meta["tasks"])
	assert.Equal(t, 2, res.Meta["sources"])
	assert.Equal(t, 2, res.Meta["written"])
	require.Len(t, writer.paths, 2)
	assert.Contains(t, writer.paths[0], "job-1/nuclei/DAPI_z")
}

func TestProcessFailsOnReadError(t *testing.T) {
	reader := &stubReader{fail: map[string]bool{"/data/dapi_z1.tif": true}}
	e := New(nil, reader, &recordingWriter{}, nil)

	res := e.Process(context.Background(), testJob(t))
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "/data/dapi_z1.tif")
}

func TestProcessFailsOnWriteError(t *testing.T) {
	e := New(nil, &stubReader{}, &recordingWriter{fail: true}, nil)

	res := e.Process(context.Background(), testJob(t))
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "disk full")
}

func TestProcessWithoutWriterSkipsOutput(t *testing.T) {
	e := New(nil, &stubReader{}, nil, nil)

	res := e.Process(context.Background(), testJob(t))
	require.NoError(t, res.Error)
	assert.Equal(t, 0, res.Meta["written"])
}

func TestProcessHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{}
	e := New(nil, reader, nil, nil)
	res := e.Process(ctx, testJob(t))
	require.Error(t, res.Error)
	assert.Equal(t, 0, reader.reads)
}
