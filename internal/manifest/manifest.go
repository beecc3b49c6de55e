// Package manifest loads the declarative extraction manifest: which raster
// files hold which channel/z-layer, which windows to extract, and which
// segmentation tasks to prepare.
package manifest

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"segtile/internal/filters"
	"segtile/internal/imageset"
	"segtile/internal/raster"
	"segtile/internal/segment"
)

// TaskSpec declares one segmentation task.
type TaskSpec struct {
	ID      string      `yaml:"id"`
	ZLayers []int       `yaml:"z_layers"`
	Inputs  []InputSpec `yaml:"inputs"`
}

// InputSpec declares one channel input and its preprocessing sequence.
type InputSpec struct {
	Channel       string         `yaml:"channel"`
	Preprocessing []filters.Spec `yaml:"preprocessing,omitempty"`
}

// Manifest is the on-disk extraction description.
type Manifest struct {
	Windows []raster.Window       `yaml:"windows"`
	Images  []imageset.Descriptor `yaml:"images"`
	Tasks   []TaskSpec            `yaml:"tasks"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	return Parse(body)
}

// Parse decodes and validates manifest bytes.
func Parse(body []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(body, &m); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Windows) == 0 {
		return errors.New("manifest declares no windows")
	}
	for _, win := range m.Windows {
		if win.Width == 0 || win.Height == 0 {
			return errors.Errorf("window %s has an empty dimension", win)
		}
	}
	if len(m.Images) == 0 {
		return errors.New("manifest declares no images")
	}
	for i, img := range m.Images {
		if img.Channel == "" {
			return errors.Errorf("image %d has no channel", i)
		}
		if img.Path == "" {
			return errors.Errorf("image %d (%s, z=%d) has no path", i, img.Channel, img.ZLayer)
		}
	}
	seen := make(map[string]bool)
	for _, spec := range m.Tasks {
		if spec.ID == "" {
			return errors.New("task with empty id")
		}
		if seen[spec.ID] {
			return errors.Errorf("duplicate task id %q", spec.ID)
		}
		seen[spec.ID] = true
	}
	return nil
}

// BuildTasks materializes the declared tasks, compiling each input's
// preprocessing sequence through the filter factory.
func (m *Manifest) BuildTasks() ([]segment.Task, error) {
	tasks := make([]segment.Task, 0, len(m.Tasks))
	for _, spec := range m.Tasks {
		task := segment.Task{
			ID:      spec.ID,
			ZLayers: spec.ZLayers,
			Inputs:  make([]segment.Input, 0, len(spec.Inputs)),
		}
		for _, in := range spec.Inputs {
			pipe, err := filters.BySequence(in.Preprocessing)
			if err != nil {
				return nil, errors.Wrapf(err, "task %s channel %q", spec.ID, in.Channel)
			}
			task.Inputs = append(task.Inputs, segment.Input{
				Channel:       in.Channel,
				Preprocessing: pipe,
			})
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
