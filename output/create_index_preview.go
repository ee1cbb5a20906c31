package output

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/satfusion/internal/raster"
)

const legendHeight = 34

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func valueToColor(norm float64) color.RGBA {
	var r, g, b uint8
	if norm <= 0.5 {
		// Transition from blue to green
		ratio := norm / 0.5
		r = 0
		g = uint8(255 * ratio)
		b = uint8(255 * (1 - ratio))
	} else {
		// Transition from green to red
		ratio := (norm - 0.5) / 0.5
		r = uint8(255 * ratio)
		g = uint8(255 * (1 - ratio))
		b = 0
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// CreateIndexPreview renders an 8-bit index raster as a colour JPEG with a
// -1..1 legend underneath. The preview is written next to the raster.
func CreateIndexPreview(tifPath, index string) (string, error) {
	r, err := raster.Read(tifPath)
	if err != nil {
		return "", err
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetRGBA(x, y, valueToColor(normalize(float64(r.At(x, y)), 0, 255)))
		}
	}

	width := r.Width
	if width < 120 {
		width = 120
	}
	dc := gg.NewContext(width, r.Height+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(img, 0, 0)

	barTop := float64(r.Height) + 4
	for x := 0; x < width; x++ {
		c := valueToColor(float64(x) / float64(width-1))
		dc.SetRGB255(int(c.R), int(c.G), int(c.B))
		dc.DrawRectangle(float64(x), barTop, 1, 10)
		dc.Fill()
	}
	dc.SetRGB(0, 0, 0)
	textY := barTop + 24
	dc.DrawStringAnchored("-1", 2, textY, 0, 0)
	dc.DrawStringAnchored(strings.ToUpper(index), float64(width)/2, textY, 0.5, 0)
	dc.DrawStringAnchored("1", float64(width)-2, textY, 1, 0)

	outDir := filepath.Join(filepath.Dir(tifPath), "preview")
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", outDir, err)
	}
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(tifPath), filepath.Ext(tifPath))+".jpeg")
	if err := gg.SaveJPG(out, dc.Image(), 95); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", out, err)
	}
	return out, nil
}
