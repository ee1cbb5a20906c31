package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wgs84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

func testMeta() Meta {
	return Meta{
		Projection:      wgs84,
		GeoTransform:    [6]float64{-75.205, 0.0001, 0, 6.108, 0, -0.0001},
		HasGeoTransform: true,
		DataType:        "Float32",
	}
}

func TestNormalizedDifferenceIdenticalIsZero(t *testing.T) {
	a := Filled(4, 3, 0.37, testMeta())
	b := Filled(4, 3, 0.37, testMeta())

	nd, err := NormalizedDifference(a, b)
	require.NoError(t, err)
	for _, v := range nd.Data {
		assert.Equal(t, float32(0), v)
	}
}

func TestNormalizedDifferenceZeroInputsStayFinite(t *testing.T) {
	nd, err := NormalizedDifference(New(2, 2, Meta{}), New(2, 2, Meta{}))
	require.NoError(t, err)
	for _, v := range nd.Data {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestNormalizedDifferenceShapeMismatch(t *testing.T) {
	_, err := NormalizedDifference(New(2, 2, Meta{}), New(3, 2, Meta{}))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNormalizedDifferenceKeepsPrimaryMeta(t *testing.T) {
	meta := testMeta()
	nd, err := NormalizedDifference(Filled(2, 2, 0.5, meta), Filled(2, 2, 0.2, Meta{}))
	require.NoError(t, err)
	assert.Equal(t, meta, nd.Meta)
	assert.InDelta(t, 0.4286, nd.Data[0], 1e-4)
}

func TestScaleValue(t *testing.T) {
	nan := float32(math.NaN())
	assert.Equal(t, uint8(127), ScaleValue(nan))
	assert.Equal(t, uint8(255), ScaleValue(float32(math.Inf(1))))
	assert.Equal(t, uint8(127), ScaleValue(float32(math.Inf(-1))))
	assert.Equal(t, uint8(0), ScaleValue(-1))
	assert.Equal(t, uint8(255), ScaleValue(1))
	assert.Equal(t, uint8(0), ScaleValue(-3))
	assert.Equal(t, uint8(255), ScaleValue(7))
	assert.Equal(t, uint8(182), ScaleValue(0.4286))
}

func TestScaleTo8BitAllNaN(t *testing.T) {
	r := Filled(5, 5, float32(math.NaN()), testMeta())
	out := ScaleTo8Bit(r)
	for _, v := range out.Bytes() {
		assert.Equal(t, uint8(127), v)
	}
	assert.Equal(t, "Byte", out.Meta.DataType)
	assert.Equal(t, r.Meta.GeoTransform, out.Meta.GeoTransform)
}

func TestScaleValueMonotonic(t *testing.T) {
	prev := ScaleValue(-1)
	for v := float32(-1); v <= 1; v += 0.001 {
		cur := ScaleValue(v)
		assert.GreaterOrEqual(t, cur, prev, "value %f", v)
		prev = cur
	}
}

func TestBytesClipsAndTruncates(t *testing.T) {
	r, err := FromSlice(5, 1, []float32{-4, 0.9, 127.7, 254.99, 300}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 127, 254, 255}, r.Bytes())
}

func TestFromSliceChecksLength(t *testing.T) {
	_, err := FromSlice(3, 3, make([]float32, 8), Meta{})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMedian3x3RemovesImpulse(t *testing.T) {
	r := Filled(5, 5, 10, Meta{})
	r.Set(2, 2, 250)
	r.Set(0, 0, 0)

	out := Median3x3(r)
	assert.Equal(t, float32(10), out.At(2, 2))
	assert.Equal(t, float32(10), out.At(0, 0))
	assert.Equal(t, 5, out.Width)
	assert.Equal(t, 5, out.Height)
}

func TestMinMaxNormalize(t *testing.T) {
	r, _ := FromSlice(3, 1, []float32{2, 4, 6}, Meta{})
	out := MinMaxNormalize(r, 1e-5)
	assert.Equal(t, []float32{0, 0.5, 1}, out.Data)

	flat := MinMaxNormalize(Filled(3, 1, 9, Meta{}), 1e-5)
	assert.Equal(t, []float32{0, 0, 0}, flat.Data)
}

func TestMaskSentinel2(t *testing.T) {
	scl, _ := FromSlice(4, 1, []float32{4, 3, 9, 10}, Meta{})
	b4, _ := FromSlice(4, 1, []float32{1000, 1000, 1000, 1000}, Meta{})
	in := Bands{"SCL": scl, "B4": b4, "AOT": b4}

	out, err := MaskSentinel2(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, out.Names())
	assert.InDelta(t, 0.1, out["B4"].Data[0], 1e-6)
	for _, v := range out["B4"].Data[1:] {
		assert.True(t, math.IsNaN(float64(v)))
	}

	_, err = MaskSentinel2(Bands{"B4": b4})
	require.ErrorIs(t, err, ErrMissingMaskBand)
}

func TestMaskLandsat8(t *testing.T) {
	qa, _ := FromSlice(3, 1, []float32{0, 1 << 3, 1 << 4}, Meta{})
	sr, _ := FromSlice(3, 1, []float32{10000, 10000, 10000}, Meta{})
	st, _ := FromSlice(3, 1, []float32{40000, 40000, 40000}, Meta{})

	out, err := MaskLandsat8(Bands{"QA_PIXEL": qa, "SR_B4": sr, "ST_B10": st})
	require.NoError(t, err)
	assert.Equal(t, []string{"SR_B4", "ST_B10"}, out.Names())
	assert.InDelta(t, 0.075, out["SR_B4"].Data[0], 1e-5)
	assert.InDelta(t, 285.72, out["ST_B10"].Data[0], 1e-2)
	assert.True(t, math.IsNaN(float64(out["SR_B4"].Data[1])))
	assert.True(t, math.IsNaN(float64(out["ST_B10"].Data[2])))
}

func TestGeoTIFFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.tif")
	src := Filled(7, 5, 0.25, testMeta())
	src.Set(6, 4, 0.75)

	require.NoError(t, Write(path, src))
	got, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, src.Width, got.Width)
	assert.Equal(t, src.Height, got.Height)
	assert.Equal(t, src.Data, got.Data)
	assert.Equal(t, src.Meta.GeoTransform, got.Meta.GeoTransform)
	assert.Contains(t, got.Meta.Projection, "WGS")
	assert.Equal(t, "Float32", got.Meta.DataType)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.tif"))
	require.ErrorIs(t, err, ErrInvalidTif)
}

func TestReadBandOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.tif")
	require.NoError(t, Write(path, Filled(2, 2, 1, testMeta())))

	_, err := ReadBand(path, 2)
	require.ErrorIs(t, err, ErrBandOutOfRange)
}

// Two co-registered rasters of 0.5 and 0.2 give a uniform index of ~0.4286,
// stored as 182 with the primary raster's georeferencing.
func TestIndexEndToEnd(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "site_mean_2020-01-01_2020-01-31.tif")
	b := filepath.Join(dir, "b2.tif")
	out := filepath.Join(dir, "site_ndvi_2020-01-01_2020-01-31.tif")
	require.NoError(t, Write(a, Filled(600, 520, 0.5, testMeta())))
	require.NoError(t, Write(b, Filled(600, 520, 0.2, testMeta())))

	p, err := Load(a)
	require.NoError(t, err)
	other, err := Read(b)
	require.NoError(t, err)

	require.NoError(t, p.Apply(func(r *Raster) (*Raster, error) {
		nd, err := NormalizedDifference(r, other)
		if err != nil {
			return nil, err
		}
		for _, v := range nd.Data {
			if math.Abs(float64(v)-0.4286) > 1e-4 {
				t.Fatalf("unexpected index %f", v)
			}
		}
		return ScaleTo8Bit(nd), nil
	}))
	require.NoError(t, p.Save(out))

	got, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, 600, got.Width)
	assert.Equal(t, 520, got.Height)
	assert.Equal(t, "Byte", got.Meta.DataType)
	assert.Equal(t, testMeta().GeoTransform, got.Meta.GeoTransform)
	for _, v := range got.Data {
		require.Equal(t, float32(182), v)
	}
}

func TestProcessorRejectsShapeChange(t *testing.T) {
	p := &Processor{Path: "x.tif", Raster: New(3, 3, Meta{})}
	err := p.Apply(func(r *Raster) (*Raster, error) { return New(2, 2, Meta{}), nil })
	require.ErrorIs(t, err, ErrShapeMismatch)
}
