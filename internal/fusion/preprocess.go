package fusion

import (
	"image"
	"math"

	"github.com/forest-guardian/satfusion/internal/raster"
	"golang.org/x/image/draw"
)

const (
	minRange = 1e-5
	gamma    = 1.5
)

// Preprocess prepares one channel: 3x3 median, min-max stretch, gamma 1.5
// for contrast and scaling onto 0..255. A flat raster becomes all zeros.
func Preprocess(r *raster.Raster) *image.Gray {
	norm := raster.MinMaxNormalize(raster.Median3x3(r), minRange)
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for i, v := range norm.Data {
		if v != v || v <= 0 {
			continue
		}
		x := math.Pow(float64(v), gamma) * 255
		if x > 255 {
			x = 255
		}
		img.Pix[i] = uint8(x)
	}
	return img
}

// Resize scales src to width x height with bilinear interpolation. Samples
// are quantized to 16 bits over src's range for the resampling pass. An
// all-NaN source resizes to zeros.
func Resize(src *raster.Raster, width, height int) *raster.Raster {
	if src.Width == width && src.Height == height {
		return src
	}
	lo, hi, ok := src.MinMax()
	if !ok {
		return raster.New(width, height, src.Meta)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	gray := image.NewGray16(image.Rect(0, 0, src.Width, src.Height))
	for i, v := range src.Data {
		if v != v {
			v = lo
		}
		q := uint16(float64((v-lo)/span) * math.MaxUint16)
		gray.Pix[2*i] = uint8(q >> 8)
		gray.Pix[2*i+1] = uint8(q)
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	out := raster.New(width, height, src.Meta)
	for i := range out.Data {
		q := uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
		out.Data[i] = lo + float32(q)/math.MaxUint16*span
	}
	return out
}
