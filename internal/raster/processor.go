package raster

import (
	"fmt"
	"path/filepath"

	"github.com/forest-guardian/satfusion/internal/log"
	"go.uber.org/zap"
)

// Processor loads the first band of a raster, runs transforms over it and
// saves the result as an 8-bit raster with the original georeferencing.
type Processor struct {
	Path   string
	Raster *Raster
}

func Load(path string) (*Processor, error) {
	r, err := Read(path)
	if err != nil {
		return nil, err
	}
	return &Processor{Path: path, Raster: r}, nil
}

// Apply replaces the raster with fn's result. The shape must not change.
func (p *Processor) Apply(fn func(*Raster) (*Raster, error)) error {
	out, err := fn(p.Raster)
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", filepath.Base(p.Path), err)
	}
	if !out.SameShape(p.Raster) {
		return fmt.Errorf("%w: %s changed from %dx%d to %dx%d", ErrShapeMismatch, filepath.Base(p.Path),
			p.Raster.Width, p.Raster.Height, out.Width, out.Height)
	}
	out.Meta.Projection = p.Raster.Meta.Projection
	out.Meta.GeoTransform = p.Raster.Meta.GeoTransform
	out.Meta.HasGeoTransform = p.Raster.Meta.HasGeoTransform
	p.Raster = out
	return nil
}

// Save writes a one-band Byte GeoTIFF.
func (p *Processor) Save(path string) error {
	if err := WriteBytes(path, p.Raster); err != nil {
		return err
	}
	log.Info(logTag+"saved", zap.String("src", filepath.Base(p.Path)), zap.String("out", path))
	return nil
}
