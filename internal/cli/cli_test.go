package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segtile/internal/config"
	"segtile/internal/manifest"
	"segtile/internal/pipeline"
	"segtile/internal/raster"
)

func testRootCmd(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Processing.ParallelWindows = 1
	cfg.Raster.MaxAttempts = 1

	cmd := NewRootCmd(cfg, slog.Default(), nil)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out, err
}

func TestVersionCommand(t *testing.T) {
	out, err := testRootCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "segtile")
}

func TestConfigShowPrintsJSON(t *testing.T) {
	out, err := testRootCmd(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"processing"`)
	assert.Contains(t, out.String(), `"raster"`)
}

func TestExtractRequiresManifestArg(t *testing.T) {
	_, err := testRootCmd(t, "extract")
	require.Error(t, err)
}

type sleepyProcessor struct{}

func (sleepyProcessor) Process(ctx context.Context, job pipeline.Job) pipeline.Result {
	time.Sleep(time.Millisecond)
	return pipeline.Result{Job: job}
}

func TestSubmitManifestOutlastsQueueCapacity(t *testing.T) {
	// One slow worker and a manifest with far more windows than the job
	// queue buffers: submission must wait for slots, not abort.
	m := &manifest.Manifest{}
	for i := 0; i < 32; i++ {
		m.Windows = append(m.Windows, raster.Window{X: i * 8, Width: 8, Height: 8})
	}

	r := NewRoot(&config.Config{}, slog.Default(), nil)
	pipe := pipeline.New(context.Background(), 1, slog.Default(), nil, sleepyProcessor{})
	defer pipe.Stop()

	results, unsub := pipe.SubscribeBuffered(len(m.Windows))
	defer unsub()

	n, err := r.submitManifest(context.Background(), pipe, m, "plate.yaml", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, len(m.Windows), n)

	for i := 0; i < n; i++ {
		select {
		case res := <-results:
			require.NoError(t, res.Error)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d results", i, n)
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	out, err := testRootCmd(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"extract", "watch", "serve", "config", "version"} {
		assert.True(t, strings.Contains(out.String(), sub), "missing subcommand %s", sub)
	}
}
