package raster

import "fmt"

// Epsilon keeps the normalized difference finite when both inputs are zero.
const Epsilon = 1e-6

// NormalizedDifference computes (a-b)/(a+b+Epsilon) per sample. The result
// carries a's metadata.
func NormalizedDifference(a, b *Raster) (*Raster, error) {
	if a.Empty() || b.Empty() {
		return nil, ErrEmptyRaster
	}
	if !a.SameShape(b) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	out := a.Derive()
	for i := range a.Data {
		x, y := float64(a.Data[i]), float64(b.Data[i])
		out.Data[i] = float32((x - y) / (x + y + Epsilon))
	}
	return out, nil
}
