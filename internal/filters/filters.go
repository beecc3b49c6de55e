// Package filters implements the preprocessing pipelines applied to
// per-channel z-stacks before segmentation, plus a factory that builds a
// pipeline from a declarative sequence.
package filters

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"segtile/internal/segment"
)

// Spec declares one filter by name with optional parameters.
type Spec struct {
	Name   string         `yaml:"name" json:"name"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// BySequence builds a pipeline running the given filters in order. An empty
// sequence yields the identity pipeline.
func BySequence(specs []Spec) (segment.Pipeline, error) {
	chain := make(Chain, 0, len(specs))
	for _, spec := range specs {
		f, err := build(spec)
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	if len(chain) == 0 {
		return Identity{}, nil
	}
	return chain, nil
}

func build(spec Spec) (segment.Pipeline, error) {
	switch spec.Name {
	case "identity":
		return Identity{}, nil
	case "normalize":
		return Normalize{}, nil
	case "blur":
		radius, err := intParam(spec, "radius", 1)
		if err != nil {
			return nil, err
		}
		if radius < 1 {
			return nil, errors.Errorf("blur: radius must be positive, got %d", radius)
		}
		return Blur{Radius: radius}, nil
	case "downsample":
		factor, err := intParam(spec, "factor", 2)
		if err != nil {
			return nil, err
		}
		if factor < 1 {
			return nil, errors.Errorf("downsample: factor must be positive, got %d", factor)
		}
		return Downsample{Factor: factor}, nil
	default:
		return nil, errors.Errorf("unknown preprocessing filter %q", spec.Name)
	}
}

func intParam(spec Spec, key string, fallback int) (int, error) {
	raw, ok := spec.Params[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, errors.Errorf("%s: parameter %q must be an integer, got %T", spec.Name, key, raw)
	}
}

// Chain runs filters sequentially over the stack.
type Chain []segment.Pipeline

func (c Chain) Apply(stack []*mat.Dense) ([]*mat.Dense, error) {
	var err error
	for _, f := range c {
		stack, err = f.Apply(stack)
		if err != nil {
			return nil, err
		}
	}
	return stack, nil
}

// Identity returns the stack unchanged.
type Identity struct{}

func (Identity) Apply(stack []*mat.Dense) ([]*mat.Dense, error) {
	return stack, nil
}

// Normalize rescales each image to [0, 1] by its own min and max. A
// constant image maps to all zeros.
type Normalize struct{}

func (Normalize) Apply(stack []*mat.Dense) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(stack))
	for i, img := range stack {
		rows, cols := img.Dims()
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := img.At(r, c)
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
		span := hi - lo
		norm := mat.NewDense(rows, cols, nil)
		if span > 0 {
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					norm.Set(r, c, (img.At(r, c)-lo)/span)
				}
			}
		}
		out[i] = norm
	}
	return out, nil
}

// Blur applies a size-preserving box blur with the given radius. Pixels
// near the border average over the in-bounds part of the kernel.
type Blur struct {
	Radius int
}

func (b Blur) Apply(stack []*mat.Dense) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(stack))
	for i, img := range stack {
		rows, cols := img.Dims()
		if b.Radius >= rows || b.Radius >= cols {
			return nil, errors.Errorf("blur: radius %d too large for %dx%d image", b.Radius, rows, cols)
		}
		blurred := mat.NewDense(rows, cols, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				sum, n := 0.0, 0
				for dr := -b.Radius; dr <= b.Radius; dr++ {
					for dc := -b.Radius; dc <= b.Radius; dc++ {
						rr, cc := r+dr, c+dc
						if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
							continue
						}
						sum += img.At(rr, cc)
						n++
					}
				}
				blurred.Set(r, c, sum/float64(n))
			}
		}
		out[i] = blurred
	}
	return out, nil
}

// Downsample reduces each image by an integer factor using block means.
// The image dimensions must be divisible by the factor so the output scale
// stays exact.
type Downsample struct {
	Factor int
}

func (d Downsample) Apply(stack []*mat.Dense) ([]*mat.Dense, error) {
	if d.Factor == 1 {
		return stack, nil
	}
	out := make([]*mat.Dense, len(stack))
	for i, img := range stack {
		rows, cols := img.Dims()
		if rows%d.Factor != 0 || cols%d.Factor != 0 {
			return nil, errors.Errorf(
				"downsample: %dx%d image not divisible by factor %d", rows, cols, d.Factor)
		}
		outRows, outCols := rows/d.Factor, cols/d.Factor
		small := mat.NewDense(outRows, outCols, nil)
		area := float64(d.Factor * d.Factor)
		for r := 0; r < outRows; r++ {
			for c := 0; c < outCols; c++ {
				sum := 0.0
				for dr := 0; dr < d.Factor; dr++ {
					for dc := 0; dc < d.Factor; dc++ {
						sum += img.At(r*d.Factor+dr, c*d.Factor+dc)
					}
				}
				small.Set(r, c, sum/area)
			}
		}
		out[i] = small
	}
	return out, nil
}
