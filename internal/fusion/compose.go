package fusion

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/raster"
	"go.uber.org/zap"
)

const logTag = "fusion: "

// Compose merges three equally sized channels into an RGB image.
func Compose(red, green, blue *image.Gray) (*image.RGBA, error) {
	b := green.Bounds()
	if red.Bounds() != b || blue.Bounds() != b {
		return nil, fmt.Errorf("%w: r=%v g=%v b=%v", ErrChannelShape, red.Bounds(), b, blue.Bounds())
	}
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetRGBA(x, y, color.RGBA{
				R: red.GrayAt(x, y).Y,
				G: green.GrayAt(x, y).Y,
				B: blue.GrayAt(x, y).Y,
				A: 255,
			})
		}
	}
	return out, nil
}

// Options controls what a fusion writes next to the PNG.
type Options struct {
	// GeoTIFF also writes a 3-band GeoTIFF georeferenced like the NDVI input.
	GeoTIFF bool
}

// FuseRadar composes VH (red), NDVI (green) and NDBI (blue). VH and NDBI
// are resized to the NDVI grid first. The result is fusion_<YYYY-MM>.png.
func FuseRadar(pair RadarPair, outDir string, opts Options) (string, error) {
	ndvi, err := raster.Read(pair.NDVI)
	if err != nil {
		return "", err
	}
	ndbi, err := raster.Read(pair.NDBI)
	if err != nil {
		return "", err
	}
	vh, err := raster.Read(pair.VH)
	if err != nil {
		return "", err
	}

	green := Preprocess(ndvi)
	blue := Preprocess(Resize(ndbi, ndvi.Width, ndvi.Height))
	red := Preprocess(Resize(vh, ndvi.Width, ndvi.Height))

	name := "fusion_" + pair.Month.Format("2006-01")
	return save(outDir, name, ndvi.Meta, red, green, blue, opts)
}

// FuseIndices composes NDWI (red), NDVI (green) and NDBI (blue) of one
// date into fusion_<YYYY-MM-DD>.png.
func FuseIndices(triple IndexTriple, outDir string, opts Options) (string, error) {
	ndvi, err := raster.Read(triple.NDVI)
	if err != nil {
		return "", err
	}
	ndbi, err := raster.Read(triple.NDBI)
	if err != nil {
		return "", err
	}
	ndwi, err := raster.Read(triple.NDWI)
	if err != nil {
		return "", err
	}

	green := Preprocess(ndvi)
	red := Preprocess(Resize(ndwi, ndvi.Width, ndvi.Height))
	blue := Preprocess(Resize(ndbi, ndvi.Width, ndvi.Height))

	name := "fusion_" + triple.Date.Format(dateLayout)
	return save(outDir, name, ndvi.Meta, red, green, blue, opts)
}

func save(outDir, name string, meta raster.Meta, red, green, blue *image.Gray, opts Options) (string, error) {
	img, err := Compose(red, green, blue)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", outDir, err)
	}
	out := filepath.Join(outDir, name+".png")
	if err := gg.SavePNG(out, img); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", out, err)
	}
	if opts.GeoTIFF {
		tif := strings.TrimSuffix(out, ".png") + ".tif"
		b := img.Bounds()
		if err := raster.WriteRGB(tif, b.Dx(), b.Dy(), meta, red.Pix, green.Pix, blue.Pix); err != nil {
			return "", err
		}
	}
	log.Info(logTag+"fused", zap.String("out", out))
	return out, nil
}
