package segment

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"segtile/internal/imageset"
)

// Prepare filters an assembled image set for one task and returns the
// filtered set together with the task's single spatial scale.
//
// Inputs are processed in the task's declared order. For each input the
// available z-layers are intersected with the task's z-layers, the channel's
// preprocessing pipeline is run over the surviving stack, and the per-image
// scale is derived from the source and filtered dimensions. Every image of
// every channel must come out at exactly the same scale; the first channel
// processed establishes the task's scale and all later channels must match
// it. Validation failures are configuration errors and are never retried.
//
// Prepare holds no state across calls: the same task and image set always
// yield the same result.
func Prepare(task Task, images imageset.ImageSet) (imageset.ImageSet, Scale, error) {
	prepared := imageset.New()

	var scale Scale
	established := false

	taskZ := make(map[int]bool, len(task.ZLayers))
	for _, z := range task.ZLayers {
		taskZ[z] = true
	}

	for _, input := range task.Inputs {
		channel, ok := images.Channel(input.Channel)
		if !ok {
			return imageset.ImageSet{}, Scale{}, errors.Errorf(
				"no %q input images found for task %s", input.Channel, task.ID)
		}

		zs := make([]int, 0, len(channel))
		for z := range channel {
			if taskZ[z] {
				zs = append(zs, z)
			}
		}
		sort.Ints(zs)
		if len(zs) == 0 {
			return imageset.ImageSet{}, Scale{}, errors.Errorf(
				"no %q input images found for task %s", input.Channel, task.ID)
		}

		stack := make([]*mat.Dense, len(zs))
		for i, z := range zs {
			stack[i] = channel[z]
		}

		filtered, err := input.Preprocessing.Apply(stack)
		if err != nil {
			return imageset.ImageSet{}, Scale{}, errors.Wrapf(err,
				"preprocessing channel %q for task %s", input.Channel, task.ID)
		}
		if len(filtered) != len(stack) {
			return imageset.ImageSet{}, Scale{}, errors.Errorf(
				"preprocessing channel %q for task %s returned %d images for %d inputs",
				input.Channel, task.ID, len(filtered), len(stack))
		}

		channelScale, err := uniformScale(stack, filtered)
		if err != nil {
			return imageset.ImageSet{}, Scale{}, err
		}
		if established && channelScale != scale {
			return imageset.ImageSet{}, Scale{}, errors.New(
				"invalid preprocessing scale: input images for segmentation after preprocessing should have same sizes")
		}
		scale = channelScale
		established = true

		for i, z := range zs {
			prepared.Set(input.Channel, z, filtered[i])
		}
	}

	if !established {
		return imageset.ImageSet{}, Scale{}, errors.Errorf(
			"no input images found for task %s", task.ID)
	}

	return prepared, scale, nil
}

// uniformScale derives the per-image scale pairs for one channel's batch and
// requires them all to be identical.
func uniformScale(sources, filtered []*mat.Dense) (Scale, error) {
	var scale Scale
	for i := range sources {
		srcRows, srcCols := sources[i].Dims()
		outRows, outCols := filtered[i].Dims()
		if outRows == 0 || outCols == 0 {
			return Scale{}, errors.New("preprocessing produced an empty image")
		}
		cur := Scale{
			Row: float64(srcRows) / float64(outRows),
			Col: float64(srcCols) / float64(outCols),
		}
		if i > 0 && cur != scale {
			return Scale{}, errors.New(
				"invalid preprocessing scale: input images for segmentation after preprocessing should have same sizes")
		}
		scale = cur
	}
	return scale, nil
}
