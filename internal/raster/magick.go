package raster

import (
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/gographics/imagick.v3/imagick"

	"segtile/internal/config"
)

// MagickSource reads raster windows through the ImageMagick bindings. One
// source owns the library environment for the whole process; individual
// reads hold a wand only for the duration of a single attempt.
type MagickSource struct {
	cfg config.Raster
}

// NewMagickSource initializes the ImageMagick environment under the given
// raster configuration. Close must be called before process exit.
func NewMagickSource(cfg config.Raster) *MagickSource {
	if cfg.TempDir != "" {
		os.Setenv("MAGICK_TEMPORARY_PATH", cfg.TempDir)
	}
	imagick.Initialize()
	return &MagickSource{cfg: cfg}
}

// Close tears down the ImageMagick environment.
func (s *MagickSource) Close() {
	imagick.Terminate()
}

// ReadBand reads one single-band window from the file at path. Any open or
// read failure is wrapped in a ReadError so callers can retry it.
func (s *MagickSource) ReadBand(path string, win Window) (*mat.Dense, error) {
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, &ReadError{Path: path, Window: win, Err: err}
	}

	raw, err := mw.ExportImagePixels(win.X, win.Y, win.Width, win.Height, "I", imagick.PIXEL_DOUBLE)
	if err != nil {
		return nil, &ReadError{Path: path, Window: win, Err: err}
	}

	pixels, ok := raw.([]float64)
	if !ok {
		return nil, errors.Errorf("unexpected pixel type %T from %s", raw, path)
	}
	if len(pixels) != int(win.Width*win.Height) {
		return nil, errors.Errorf("short read from %s at %s: got %d pixels, want %d",
			path, win, len(pixels), win.Width*win.Height)
	}

	return mat.NewDense(int(win.Height), int(win.Width), pixels), nil
}

// WriteBand writes a 2-D matrix as a single-band 16-bit TIFF at path.
func (s *MagickSource) WriteBand(path string, img *mat.Dense) error {
	rows, cols := img.Dims()
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = img.At(r, c)
		}
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ConstituteImage(uint(cols), uint(rows), "I", imagick.PIXEL_DOUBLE, data); err != nil {
		return errors.Wrapf(err, "constitute %s", path)
	}
	if err := mw.SetImageFormat("TIFF"); err != nil {
		return errors.Wrapf(err, "set format for %s", path)
	}
	if err := mw.SetImageDepth(16); err != nil {
		return errors.Wrapf(err, "set depth for %s", path)
	}
	if err := mw.WriteImage(path); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
