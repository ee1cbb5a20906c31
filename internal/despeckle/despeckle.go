package despeckle

import (
	"context"
	"errors"
	"fmt"

	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/raster"
	"go.uber.org/zap"
)

const logTag = "despeckle: "

// DefaultTileSize is the edge the denoising model was trained on.
const DefaultTileSize = 512

var (
	ErrInvalidTileSize = errors.New("tile size must be positive")
	ErrBadTile         = errors.New("denoiser returned a tile of the wrong size")
)

// Denoiser maps a size x size tile (row-major, values in [0,1]) to a tile of
// the same size.
type Denoiser interface {
	Denoise(ctx context.Context, tile []float32, size int) ([]float32, error)
}

type DenoiserFunc func(ctx context.Context, tile []float32, size int) ([]float32, error)

func (f DenoiserFunc) Denoise(ctx context.Context, tile []float32, size int) ([]float32, error) {
	return f(ctx, tile, size)
}

// NeedsTiling reports whether r is larger than one tile in any direction.
func NeedsTiling(r *raster.Raster, tileSize int) bool {
	return r.Height > tileSize || r.Width > tileSize
}

// TileDespeckleStitch denoises r one tile at a time. Rasters that fit in a
// single tile are returned unchanged. Edge tiles are zero padded before
// denoising and cropped before being pasted back. Output samples are the
// denoised intensities scaled to [0,255]. Any denoiser error aborts the run.
func TileDespeckleStitch(ctx context.Context, r *raster.Raster, tileSize int, d Denoiser) (*raster.Raster, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTileSize, tileSize)
	}
	if !NeedsTiling(r, tileSize) {
		return r, nil
	}

	out := r.Derive()
	tile := make([]float32, tileSize*tileSize)
	rows := (r.Height + tileSize - 1) / tileSize
	cols := (r.Width + tileSize - 1) / tileSize
	log.Debug(logTag+"tiling", zap.Int("width", r.Width), zap.Int("height", r.Height),
		zap.Int("rows", rows), zap.Int("cols", cols))

	for i := 0; i < r.Height; i += tileSize {
		for j := 0; j < r.Width; j += tileSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h := min(tileSize, r.Height-i)
			w := min(tileSize, r.Width-j)

			clear(tile)
			for y := 0; y < h; y++ {
				src := r.Data[(i+y)*r.Width+j : (i+y)*r.Width+j+w]
				dst := tile[y*tileSize : y*tileSize+w]
				for x, v := range src {
					dst[x] = v / 255
				}
			}

			denoised, err := d.Denoise(ctx, tile, tileSize)
			if err != nil {
				return nil, fmt.Errorf("failed to denoise tile at (%d,%d): %w", i, j, err)
			}
			if len(denoised) != tileSize*tileSize {
				return nil, fmt.Errorf("%w: got %d samples, want %d", ErrBadTile, len(denoised), tileSize*tileSize)
			}

			for y := 0; y < h; y++ {
				dst := out.Data[(i+y)*r.Width+j : (i+y)*r.Width+j+w]
				for x := range dst {
					dst[x] = clip255(denoised[y*tileSize+x] * 255)
				}
			}
		}
	}
	return out, nil
}

func clip255(v float32) float32 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return v
	}
}
