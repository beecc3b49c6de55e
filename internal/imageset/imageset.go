// Package imageset groups per-channel, per-z-layer tile images and
// assembles them from descriptor lists.
package imageset

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Descriptor identifies one source image to load: a channel name, a z-layer
// index, and the raster file holding that plane. It is a plain value with
// structural equality and no behavior.
type Descriptor struct {
	Channel string `yaml:"channel" json:"channel"`
	ZLayer  int    `yaml:"z_layer" json:"z_layer"`
	Path    string `yaml:"path" json:"path"`
}

// ImageSet maps channel name to z-layer index to a 2-D image. The zero
// value is not usable; construct with New.
type ImageSet struct {
	channels map[string]map[int]*mat.Dense
}

// New returns an empty ImageSet.
func New() ImageSet {
	return ImageSet{channels: make(map[string]map[int]*mat.Dense)}
}

// Set stores img at (channel, z), overwriting any previous image there.
func (s ImageSet) Set(channel string, z int, img *mat.Dense) {
	zs, ok := s.channels[channel]
	if !ok {
		zs = make(map[int]*mat.Dense)
		s.channels[channel] = zs
	}
	zs[z] = img
}

// At returns the image at (channel, z).
func (s ImageSet) At(channel string, z int) (*mat.Dense, bool) {
	img, ok := s.channels[channel][z]
	return img, ok
}

// Channel returns the z-layer mapping for one channel.
func (s ImageSet) Channel(name string) (map[int]*mat.Dense, bool) {
	zs, ok := s.channels[name]
	return zs, ok
}

// Channels returns all channel names in sorted order.
func (s ImageSet) Channels() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of channels.
func (s ImageSet) Len() int { return len(s.channels) }

// ZLevels returns the sorted union of z-layers present across all channels.
// Channels are not required to cover the same z-layers.
func (s ImageSet) ZLevels() []int {
	seen := make(map[int]bool)
	for _, zs := range s.channels {
		for z := range zs {
			seen[z] = true
		}
	}
	levels := make([]int, 0, len(seen))
	for z := range seen {
		levels = append(levels, z)
	}
	sort.Ints(levels)
	return levels
}

// AsList returns the channel's images in ascending z order. A channel that
// is absent yields an empty list.
func (s ImageSet) AsList(channel string) []*mat.Dense {
	zs := s.channels[channel]
	keys := make([]int, 0, len(zs))
	for z := range zs {
		keys = append(keys, z)
	}
	sort.Ints(keys)

	imgs := make([]*mat.Dense, 0, len(keys))
	for _, z := range keys {
		imgs = append(imgs, zs[z])
	}
	return imgs
}

// AsStack returns one multi-channel plane list per z-level in the set, with
// channels in the given order. A nil order means all channels, sorted.
// Every ordered channel must hold an image for every z-level in the set.
func (s ImageSet) AsStack(order []string) ([][]*mat.Dense, error) {
	if order == nil {
		order = s.Channels()
	}

	levels := s.ZLevels()
	stack := make([][]*mat.Dense, 0, len(levels))
	for _, z := range levels {
		plane := make([]*mat.Dense, 0, len(order))
		for _, channel := range order {
			img, ok := s.At(channel, z)
			if !ok {
				return nil, errors.Errorf("channel %q has no image at z-layer %d", channel, z)
			}
			plane = append(plane, img)
		}
		stack = append(stack, plane)
	}
	return stack, nil
}
