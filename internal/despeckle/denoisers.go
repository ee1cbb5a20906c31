package despeckle

import (
	"context"

	"github.com/forest-guardian/satfusion/internal/raster"
)

// Identity returns tiles untouched.
var Identity = DenoiserFunc(func(_ context.Context, tile []float32, _ int) ([]float32, error) {
	out := make([]float32, len(tile))
	copy(out, tile)
	return out, nil
})

// MedianDenoiser runs a 3x3 median filter locally, for when the model
// sidecar is not available.
type MedianDenoiser struct{}

func (MedianDenoiser) Denoise(_ context.Context, tile []float32, size int) ([]float32, error) {
	r, err := raster.FromSlice(size, size, tile, raster.Meta{})
	if err != nil {
		return nil, err
	}
	return raster.Median3x3(r).Data, nil
}
