package raster

import (
	"fmt"
	"math"
)

// Meta is the georeferencing carried from an input raster to every raster
// derived from it.
type Meta struct {
	Projection      string
	GeoTransform    [6]float64
	HasGeoTransform bool
	DataType        string
	NoData          *float64
}

// Raster is a single band of float32 samples stored row-major.
type Raster struct {
	Width  int
	Height int
	Data   []float32
	Meta   Meta
}

func New(width, height int, meta Meta) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
		Meta:   meta,
	}
}

// FromSlice wraps data without copying.
func FromSlice(width, height int, data []float32, meta Meta) (*Raster, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("%w: %d samples for %dx%d", ErrShapeMismatch, len(data), width, height)
	}
	return &Raster{Width: width, Height: height, Data: data, Meta: meta}, nil
}

func Filled(width, height int, value float32, meta Meta) *Raster {
	r := New(width, height, meta)
	for i := range r.Data {
		r.Data[i] = value
	}
	return r
}

func (r *Raster) At(x, y int) float32 {
	return r.Data[y*r.Width+x]
}

func (r *Raster) Set(x, y int, v float32) {
	r.Data[y*r.Width+x] = v
}

func (r *Raster) Len() int {
	return r.Width * r.Height
}

func (r *Raster) Empty() bool {
	return r == nil || r.Width == 0 || r.Height == 0
}

func (r *Raster) SameShape(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height
}

// Derive returns a zeroed raster with r's shape and metadata.
func (r *Raster) Derive() *Raster {
	return New(r.Width, r.Height, r.Meta)
}

// Bytes clips every sample to [0,255] and truncates it to uint8. NaN maps to
// 0.
func (r *Raster) Bytes() []uint8 {
	out := make([]uint8, len(r.Data))
	for i, v := range r.Data {
		out[i] = toByte(v)
	}
	return out
}

// MinMax ignores NaN samples. ok is false when every sample is NaN.
func (r *Raster) MinMax() (min, max float32, ok bool) {
	min, max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range r.Data {
		if isNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		ok = true
	}
	return min, max, ok
}

func toByte(v float32) uint8 {
	switch {
	case isNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

func isNaN(v float32) bool {
	return v != v
}
