// Package raster defines the boundary to windowed single-band raster
// storage and its ImageMagick-backed implementation.
package raster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Window is a rectangular pixel region read identically from every source
// file in one assembly call. X and Y are the offsets of the top-left corner.
type Window struct {
	X      int  `yaml:"x" json:"x"`
	Y      int  `yaml:"y" json:"y"`
	Width  uint `yaml:"width" json:"width"`
	Height uint `yaml:"height" json:"height"`
}

func (w Window) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", w.X, w.Y, w.Width, w.Height)
}

// Source reads one single-band window from a raster file. Implementations
// resolve credentials and driver environment themselves; callers only
// supply a path and a window.
type Source interface {
	// ReadBand reads the window from the file at path and returns it as a
	// Height x Width matrix. The result is strictly 2-D: a single-band
	// read never carries a band dimension.
	ReadBand(path string, win Window) (*mat.Dense, error)
}

// ReadError is an I/O-classified failure while opening or reading a raster
// file. Reads that fail with a ReadError are transient and may be retried;
// anything else is permanent.
type ReadError struct {
	Path   string
	Window Window
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s at %s: %v", e.Path, e.Window, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
