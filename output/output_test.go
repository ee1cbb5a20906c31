package output

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/satfusion/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueToColor(t *testing.T) {
	assert.Equal(t, color.RGBA{B: 255, A: 255}, valueToColor(0))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, valueToColor(0.5))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, valueToColor(1))
	assert.Equal(t, 0.0, normalize(5, 3, 3))
	assert.Equal(t, 1.0, normalize(300, 0, 255))
}

func writePNG(t *testing.T, path string, w, h int, gray uint8) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	require.NoError(t, gg.SavePNG(path, img))
}

func TestCreateVideoFromImages(t *testing.T) {
	dir := t.TempDir()
	var frames []string
	for i, g := range []uint8{0, 128, 255} {
		p := filepath.Join(dir, "fusion_"+string(rune('a'+i))+".png")
		writePNG(t, p, 16, 8, g)
		frames = append(frames, p)
	}

	out, err := CreateVideoFromImages(frames, filepath.Join(dir, "video", "timelapse"), 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "video", "timelapse.avi"), out)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCreateVideoRejectsMixedSizes(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")
	writePNG(t, a, 16, 8, 0)
	writePNG(t, b, 8, 8, 0)
	_, err := CreateVideoFromImages([]string{a, b}, filepath.Join(dir, "v.avi"), 2)
	require.Error(t, err)
}

func TestCreateVideoNoFrames(t *testing.T) {
	_, err := CreateVideoFromImages(nil, "x.avi", 2)
	require.ErrorIs(t, err, ErrNoFrames)
}

func TestCreateIndexPreview(t *testing.T) {
	dir := t.TempDir()
	tif := filepath.Join(dir, "site_ndvi_2020-01-01_2020-01-31.tif")
	require.NoError(t, raster.WriteBytes(tif, raster.Filled(20, 10, 255, raster.Meta{})))

	out, err := CreateIndexPreview(tif, "ndvi")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "preview", "site_ndvi_2020-01-01_2020-01-31.jpeg"), out)

	img, err := gg.LoadJPG(out)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 10+legendHeight, img.Bounds().Dy())
}
