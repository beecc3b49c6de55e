package imageset

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"segtile/internal/raster"
)

// TileReader fetches one windowed tile from one raster file.
type TileReader interface {
	Read(win raster.Window, path string) (*mat.Dense, error)
}

// Assembler builds ImageSets by reading one tile per descriptor. It adds no
// retry policy of its own; resilience lives entirely in the tile reader.
type Assembler struct {
	reader TileReader
	log    *slog.Logger
}

// NewAssembler returns an Assembler over the given reader.
func NewAssembler(reader TileReader, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{reader: reader, log: log}
}

// Assemble reads the shared window from every descriptor's file and groups
// the results by channel and z-layer. The first read failure aborts the
// whole call. Duplicate (channel, z-layer) descriptors keep the last image
// read; the collision is logged since it usually signals a bad manifest.
func (a *Assembler) Assemble(descs []Descriptor, win raster.Window) (ImageSet, error) {
	images := New()
	for _, desc := range descs {
		img, err := a.reader.Read(win, desc.Path)
		if err != nil {
			return ImageSet{}, err
		}
		if _, exists := images.At(desc.Channel, desc.ZLayer); exists {
			a.log.Warn("duplicate image descriptor, keeping the later one",
				"channel", desc.Channel,
				"z_layer", desc.ZLayer,
				"path", desc.Path,
			)
		}
		images.Set(desc.Channel, desc.ZLayer, img)
	}
	return images, nil
}
