// Package segment prepares assembled image sets for a segmentation task:
// it selects the task's z-layers per channel, runs each channel's
// preprocessing pipeline, and enforces a single spatial scale across every
// resulting image.
package segment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Pipeline transforms an ordered z-stack of 2-D images for one channel. The
// output must have the same length and order as the input; each output
// image may be at a different, but internally uniform, resolution.
type Pipeline interface {
	Apply(stack []*mat.Dense) ([]*mat.Dense, error)
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc func(stack []*mat.Dense) ([]*mat.Dense, error)

func (f PipelineFunc) Apply(stack []*mat.Dense) ([]*mat.Dense, error) { return f(stack) }

// Input declares one channel a task consumes and the preprocessing to run
// on it.
type Input struct {
	Channel       string
	Preprocessing Pipeline
}

// Task describes a segmentation task's inputs: an opaque identifier, the
// z-layers it requires, and an ordered list of channel inputs.
type Task struct {
	ID      string
	ZLayers []int
	Inputs  []Input
}

// Scale is the per-axis ratio between a source image's dimensions and its
// filtered counterpart's: source pixels per output pixel.
type Scale struct {
	Row float64
	Col float64
}

func (s Scale) String() string {
	return fmt.Sprintf("(%g, %g)", s.Row, s.Col)
}
