package fusion

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/satfusion/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDate(t *testing.T) {
	d, ok := ExtractDate("/data/cocorna_mean_2020-03-01_2020-03-31.tif")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), d)

	m, ok := ExtractYearMonth("cocorna_first_find_2019-07-15_2019-07-31.tif")
	require.True(t, ok)
	assert.Equal(t, time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC), m)

	for _, bad := range []string{"nodate.tif", "a_notadate_b.tif", "2020-01-01.tif", ""} {
		_, ok := ExtractDate(bad)
		assert.False(t, ok, bad)
	}
}

func TestIndexOutputName(t *testing.T) {
	assert.Equal(t, "la_mosca_ndvi_2020-01-01_2020-01-31.tif",
		IndexOutputName("/x/la_mosca_mean_2020-01-01_2020-01-31.tif", "NDVI"))
	assert.Equal(t, "cocorna_ndwi_2020-01-01_2020-01-31.tif",
		IndexOutputName("cocorna_masked_2020-01-01_2020-01-31.tif", "NDWI"))
	assert.Equal(t, "site_median_ndbi.tif", IndexOutputName("site_median_mean.tif", "NDBI"))
}

func TestPairByYearMonth(t *testing.T) {
	ndvi := []string{"s_ndvi_2020-01-01_2020-01-31.tif", "s_ndvi_2020-02-01_2020-02-28.tif", "broken.tif"}
	ndbi := []string{"s_ndbi_2020-01-01_2020-01-31.tif", "s_ndbi_2020-02-01_2020-02-28.tif", "broken.tif"}
	vh := []string{
		"s_filtered_2020-01-01_2020-01-31.tif",
		"s_filtered_2020-01-15_2020-01-31.tif",
		"s_filtered_2020-03-01_2020-03-31.tif",
	}

	pairs := PairByYearMonth(ndvi, ndbi, vh)
	require.Len(t, pairs, 1)
	assert.Equal(t, vh[0], pairs[0].VH)
	assert.Equal(t, ndvi[0], pairs[0].NDVI)
	assert.Equal(t, ndbi[0], pairs[0].NDBI)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), pairs[0].Month)
}

func TestPairByDate(t *testing.T) {
	ndvi := []string{"s_ndvi_2020-02-01_e.tif", "s_ndvi_2020-01-01_e.tif", "s_ndvi_2020-03-01_e.tif"}
	ndbi := []string{"s_ndbi_2020-01-01_e.tif", "s_ndbi_2020-02-01_e.tif"}
	ndwi := []string{"s_ndwi_2020-01-01_e.tif", "s_ndwi_2020-02-01_e.tif", "s_ndwi_2020-03-01_e.tif"}

	triples := PairByDate(ndvi, ndbi, ndwi)
	require.Len(t, triples, 2)
	assert.Equal(t, "s_ndvi_2020-01-01_e.tif", triples[0].NDVI)
	assert.Equal(t, "s_ndbi_2020-02-01_e.tif", triples[1].NDBI)
	assert.Equal(t, "s_ndwi_2020-02-01_e.tif", triples[1].NDWI)
}

func TestPreprocessFlatIsZero(t *testing.T) {
	img := Preprocess(raster.Filled(4, 3, 0.7, raster.Meta{}))
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	for _, p := range img.Pix {
		assert.Zero(t, p)
	}
}

func TestPreprocessStretch(t *testing.T) {
	// Left half 0, right half 1: the median keeps the step.
	r := raster.New(6, 6, raster.Meta{})
	for y := 0; y < 6; y++ {
		for x := 3; x < 6; x++ {
			r.Set(x, y, 1)
		}
	}
	img := Preprocess(r)
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(5, 5).Y)
}

func TestResize(t *testing.T) {
	src := raster.Filled(2, 2, 5, raster.Meta{Projection: "P"})
	assert.Same(t, src, Resize(src, 2, 2))

	out := Resize(src, 4, 3)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 3, out.Height)
	assert.Equal(t, "P", out.Meta.Projection)
	for _, v := range out.Data {
		assert.InDelta(t, 5, v, 1e-3)
	}

	ramp, err := raster.FromSlice(2, 1, []float32{0, 10}, raster.Meta{})
	require.NoError(t, err)
	up := Resize(ramp, 8, 1)
	assert.InDelta(t, 0, up.Data[0], 0.5)
	assert.InDelta(t, 10, up.Data[7], 0.5)
	assert.Less(t, up.Data[2], up.Data[5])
}

func TestComposeShapeMismatch(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 2, 2))
	b := image.NewGray(image.Rect(0, 0, 3, 2))
	_, err := Compose(a, a, b)
	require.ErrorIs(t, err, ErrChannelShape)
}

func TestCompose(t *testing.T) {
	r, g, b := image.NewGray(image.Rect(0, 0, 1, 1)), image.NewGray(image.Rect(0, 0, 1, 1)), image.NewGray(image.Rect(0, 0, 1, 1))
	r.Pix[0], g.Pix[0], b.Pix[0] = 10, 20, 30
	img, err := Compose(r, g, b)
	require.NoError(t, err)
	assert.Equal(t, []uint8{10, 20, 30, 255}, img.Pix)
}

func gradient(w, h int, scale float32) *raster.Raster {
	r := raster.New(w, h, raster.Meta{
		GeoTransform:    [6]float64{-75.2, 0.0001, 0, 6.1, 0, -0.0001},
		HasGeoTransform: true,
	})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Set(x, y, float32(x+y)*scale)
		}
	}
	return r
}

func TestFuseIndicesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	paths := map[string]string{}
	for name, r := range map[string]*raster.Raster{
		"ndvi": gradient(16, 12, 1),
		"ndbi": gradient(8, 6, 2),
		"ndwi": gradient(16, 12, 3),
	} {
		p := filepath.Join(dir, "site_"+name+"_2021-05-01_2021-05-31.tif")
		require.NoError(t, raster.WriteBytes(p, r))
		paths[name] = p
	}

	triples := PairByDate([]string{paths["ndvi"]}, []string{paths["ndbi"]}, []string{paths["ndwi"]})
	require.Len(t, triples, 1)

	out := filepath.Join(dir, "fusion")
	png, err := FuseIndices(triples[0], out, Options{GeoTIFF: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "fusion_2021-05-01.png"), png)

	img, err := gg.LoadPNG(png)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())

	tif, err := raster.ReadBand(filepath.Join(out, "fusion_2021-05-01.tif"), 3)
	require.NoError(t, err)
	assert.Equal(t, 16, tif.Width)
	assert.True(t, tif.Meta.HasGeoTransform)
	assert.InDelta(t, -75.2, tif.Meta.GeoTransform[0], 1e-9)
}

// pattern is a 6x6 raster that is 1 where on(x, y) and 0 elsewhere. After
// Preprocess the 1s become 255 away from the pattern edges.
func pattern(on func(x, y int) bool) *raster.Raster {
	r := raster.New(6, 6, raster.Meta{})
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if on(x, y) {
				r.Set(x, y, 1)
			}
		}
	}
	return r
}

func writePatterns(t *testing.T, dir string) (right, bottom, corner string) {
	right = filepath.Join(dir, "right.tif")
	bottom = filepath.Join(dir, "bottom.tif")
	corner = filepath.Join(dir, "corner.tif")
	require.NoError(t, raster.Write(right, pattern(func(x, _ int) bool { return x >= 3 })))
	require.NoError(t, raster.Write(bottom, pattern(func(_, y int) bool { return y >= 3 })))
	require.NoError(t, raster.Write(corner, pattern(func(x, y int) bool { return x < 3 && y < 3 })))
	return right, bottom, corner
}

func rgbAt(t *testing.T, path string, x, y int) color.RGBA {
	img, err := gg.LoadPNG(path)
	require.NoError(t, err)
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestFusionChannels(t *testing.T) {
	dir := t.TempDir()
	right, bottom, corner := writePatterns(t, dir)
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	radar, err := FuseRadar(RadarPair{
		Month: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NDVI:  right,
		NDBI:  bottom,
		VH:    corner,
	}, filepath.Join(dir, "radar"), Options{})
	require.NoError(t, err)
	assert.Equal(t, red, rgbAt(t, radar, 0, 0), "VH is red")
	assert.Equal(t, green, rgbAt(t, radar, 5, 0), "NDVI is green")
	assert.Equal(t, blue, rgbAt(t, radar, 0, 5), "NDBI is blue")

	indices, err := FuseIndices(IndexTriple{
		Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NDVI: right,
		NDBI: bottom,
		NDWI: corner,
	}, filepath.Join(dir, "indices"), Options{})
	require.NoError(t, err)
	assert.Equal(t, red, rgbAt(t, indices, 0, 0), "NDWI is red")
	assert.Equal(t, green, rgbAt(t, indices, 5, 0), "NDVI is green")
	assert.Equal(t, blue, rgbAt(t, indices, 0, 5), "NDBI is blue")
}

func TestResizeAllNaN(t *testing.T) {
	src := raster.Filled(2, 2, float32(math.NaN()), raster.Meta{})
	out := Resize(src, 4, 4)
	require.Len(t, out.Data, 16)
	for _, v := range out.Data {
		assert.Zero(t, v)
	}
}

func TestFuseRadarMissingInput(t *testing.T) {
	_, err := FuseRadar(RadarPair{NDVI: "missing.tif"}, t.TempDir(), Options{})
	require.Error(t, err)
}

func TestListTifs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.tif", "a.tif", "c.png", "d.TIF"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	files, err := ListTifs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.tif"), filepath.Join(dir, "b.tif"), filepath.Join(dir, "d.TIF")}, files)

	files, err = ListTifs(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
