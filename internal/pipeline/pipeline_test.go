package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forest-guardian/satfusion/internal/despeckle"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/properties"
	"github.com/forest-guardian/satfusion/internal/raster"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runDate = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	warns []string
}

func (n *recordingNotifier) Success(string) error { return nil }
func (n *recordingNotifier) Error(string) error   { return nil }
func (n *recordingNotifier) Warn(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, msg)
	return nil
}

func testPipeline(t *testing.T, deps Deps) (*Pipeline, *properties.Config) {
	cfg := &properties.Config{
		RootPath:     t.TempDir(),
		TileSize:     64,
		PollInterval: time.Millisecond,
		Workers:      2,
	}
	p := New(cfg, deps)
	p.Quiet = true
	p.Now = func() time.Time { return runDate }
	return p, cfg
}

var testMeta = raster.Meta{
	GeoTransform:    [6]float64{-75.2, 0.0001, 0, 6.1, 0, -0.0001},
	HasGeoTransform: true,
}

func writeFilled(t *testing.T, path string, w, h int, v float32) {
	require.NoError(t, raster.Write(path, raster.Filled(w, h, v, testMeta)))
}

func TestIndicesEndToEnd(t *testing.T) {
	p, cfg := testPipeline(t, Deps{})
	name := "cocorna_mean_2020-01-01_2020-01-31.tif"
	writeFilled(t, filepath.Join(cfg.BandDir("cocorna", imagery.Sentinel2, "B8"), name), 30, 20, 0.5)
	writeFilled(t, filepath.Join(cfg.BandDir("cocorna", imagery.Sentinel2, "B4"), name), 30, 20, 0.2)

	outs, err := p.Indices(context.Background(), "cocorna", imagery.Sentinel2, "ndvi")
	require.NoError(t, err)
	want := filepath.Join(cfg.IndexDir("cocorna", imagery.Sentinel2, NDVI), "cocorna_ndvi_2020-01-01_2020-01-31.tif")
	assert.Equal(t, []string{want}, outs)

	r, err := raster.Read(want)
	require.NoError(t, err)
	for _, v := range r.Data {
		require.Equal(t, float32(182), v)
	}
	assert.Equal(t, testMeta.GeoTransform, r.Meta.GeoTransform)

	rows, err := ReadReport(filepath.Join(cfg.ReportDir(), "2024-06-01.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusOK, rows[0].Status)
	assert.Equal(t, "indices NDVI", rows[0].Step)
	assert.Equal(t, name, rows[0].Input)
}

func TestIndicesPartialFailure(t *testing.T) {
	n := &recordingNotifier{}
	p, cfg := testPipeline(t, Deps{Notifier: n})
	b8 := cfg.BandDir("site", imagery.Landsat8, "SR_B5")
	b4 := cfg.BandDir("site", imagery.Landsat8, "SR_B4")
	writeFilled(t, filepath.Join(b8, "site_mean_2020-01-01_2020-01-31.tif"), 10, 10, 0.5)
	writeFilled(t, filepath.Join(b4, "site_mean_2020-01-01_2020-01-31.tif"), 10, 10, 0.2)
	writeFilled(t, filepath.Join(b8, "site_mean_2020-02-01_2020-02-28.tif"), 10, 10, 0.5)
	writeFilled(t, filepath.Join(b4, "site_mean_2020-02-01_2020-02-28.tif"), 12, 10, 0.2)

	outs, err := p.Indices(context.Background(), "site", imagery.Landsat8, NDVI)
	require.NoError(t, err)
	assert.Len(t, outs, 1)
	require.Len(t, n.warns, 1)
	assert.Contains(t, n.warns[0], "1 errors")
}

func TestIndicesAllFailed(t *testing.T) {
	p, cfg := testPipeline(t, Deps{})
	writeFilled(t, filepath.Join(cfg.BandDir("site", imagery.Sentinel2, "B3"), "site_mean_2020-01-01_2020-01-31.tif"), 4, 4, 1)
	writeFilled(t, filepath.Join(cfg.BandDir("site", imagery.Sentinel2, "B8"), "site_mean_2020-01-01_2020-01-31.tif"), 5, 4, 1)

	_, err := p.Indices(context.Background(), "site", imagery.Sentinel2, NDWI)
	require.ErrorIs(t, err, ErrAllFailed)
}

func TestIndicesErrors(t *testing.T) {
	p, _ := testPipeline(t, Deps{})
	_, err := p.Indices(context.Background(), "site", imagery.Sentinel2, "NDVI")
	require.ErrorIs(t, err, ErrNoInputs)

	_, err = p.Indices(context.Background(), "site", imagery.Sentinel1, "NDVI")
	require.ErrorIs(t, err, ErrUnknownIndex)

	_, err = p.Indices(context.Background(), "site", "modis", "NDVI")
	require.ErrorIs(t, err, imagery.ErrUnknownSatellite)
}

func TestLookupIndex(t *testing.T) {
	b, err := LookupIndex(imagery.Sentinel2, "ndbi")
	require.NoError(t, err)
	assert.Equal(t, IndexBands{A: "B11", B: "B8"}, b)
	assert.Equal(t, []string{NDBI, NDVI, NDWI}, Indices(imagery.Landsat8))
}

func TestDespeckle(t *testing.T) {
	half := despeckle.DenoiserFunc(func(_ context.Context, tile []float32, _ int) ([]float32, error) {
		out := make([]float32, len(tile))
		for i := range out {
			out[i] = 0.5
		}
		return out, nil
	})
	p, cfg := testPipeline(t, Deps{Denoiser: half})
	dir := cfg.RadarDir("cocorna", imagery.Ascending, "VH")
	writeFilled(t, filepath.Join(dir, "cocorna_first_find_2020-01-01_2020-01-31.tif"), 100, 70, 40)
	writeFilled(t, filepath.Join(dir, "cocorna_first_find_2020-02-01_2020-02-28.tif"), 40, 40, 77)

	outs, err := p.Despeckle(context.Background(), "cocorna", "ascending", "vh")
	require.NoError(t, err)
	filtered := cfg.DespeckledDir("cocorna", imagery.Ascending, "VH")
	require.Equal(t, []string{
		filepath.Join(filtered, "cocorna_filtered_2020-01-01_2020-01-31.tif"),
		filepath.Join(filtered, "cocorna_filtered_2020-02-01_2020-02-28.tif"),
	}, outs)

	large, err := raster.Read(outs[0])
	require.NoError(t, err)
	assert.Equal(t, 100, large.Width)
	assert.Equal(t, 70, large.Height)
	assert.Equal(t, float32(127), large.Data[0])
	assert.Equal(t, testMeta.GeoTransform, large.Meta.GeoTransform)

	small, err := raster.Read(outs[1])
	require.NoError(t, err)
	assert.Equal(t, float32(77), small.Data[0])
}

func TestDespeckleBadOrbit(t *testing.T) {
	p, _ := testPipeline(t, Deps{})
	_, err := p.Despeckle(context.Background(), "x", "sideways", "VH")
	require.ErrorIs(t, err, imagery.ErrUnknownOrbit)
}

type fakeRenderer struct{}

func (fakeRenderer) Process(context.Context, imagery.ProcessRequest) ([]byte, error) {
	return []byte("tif"), nil
}

type emptyFirstRange struct{}

func (emptyFirstRange) Count(_ context.Context, _ imagery.Satellite, _ string, _ orb.Polygon, r imagery.DateRange) (int, error) {
	if r.Start == "2020-01-01" {
		return 0, nil
	}
	return 4, nil
}

func TestExport(t *testing.T) {
	cfg := &properties.Config{RootPath: t.TempDir(), TileSize: 64, PollInterval: time.Millisecond, Workers: 1}
	sink := storage.NewLocalSink(cfg.DataPath())
	p := New(cfg, Deps{Exporter: imagery.NewExporter(fakeRenderer{}, emptyFirstRange{}, sink, cfg.PollInterval)})
	p.Quiet = true
	p.Now = func() time.Time { return runDate }

	outs, err := p.Export(context.Background(), ExportRequest{
		Site:      "cocorna",
		Satellite: imagery.Sentinel1,
		Bands:     []string{"VH"},
		StartYear: 2020,
		EndYear:   2020,
		Frequency: "quarterly",
		Orbit:     "descending",
	})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, filepath.Join(cfg.RadarDir("cocorna", imagery.Descending, "VH"), "cocorna_first_find_2020-04-01_2020-06-30.tif"), outs[0])

	rows, err := ReadReport(filepath.Join(cfg.ReportDir(), "2024-06-01.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, StatusSkipped, rows[0].Status)
}

type fixedCounter int

func (c fixedCounter) Count(context.Context, imagery.Satellite, string, orb.Polygon, imagery.DateRange) (int, error) {
	return int(c), nil
}

func exportPipeline(t *testing.T, counter imagery.Counter) (*Pipeline, *properties.Config) {
	cfg := &properties.Config{RootPath: t.TempDir(), TileSize: 64, PollInterval: time.Millisecond, Workers: 1}
	sink := storage.NewLocalSink(cfg.DataPath())
	p := New(cfg, Deps{Exporter: imagery.NewExporter(fakeRenderer{}, counter, sink, cfg.PollInterval)})
	p.Quiet = true
	p.Now = func() time.Time { return runDate }
	return p, cfg
}

func TestExportAllRangesEmpty(t *testing.T) {
	p, cfg := exportPipeline(t, fixedCounter(0))
	outs, err := p.Export(context.Background(), ExportRequest{
		Site:      "cocorna",
		Satellite: imagery.Sentinel2,
		Bands:     []string{"B4"},
		StartYear: 2020,
		EndYear:   2020,
		Frequency: "quarterly",
	})
	require.NoError(t, err)
	assert.Empty(t, outs)

	rows, err := ReadReport(filepath.Join(cfg.ReportDir(), "2024-06-01.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, StatusSkipped, r.Status)
	}
}

func TestExportVisualized(t *testing.T) {
	p, cfg := exportPipeline(t, emptyFirstRange{})
	outs, err := p.Export(context.Background(), ExportRequest{
		Site:      "cocorna",
		Satellite: imagery.Sentinel2,
		Bands:     []string{"B4"},
		StartYear: 2020,
		EndYear:   2020,
		Frequency: "quarterly",
		Visualize: true,
	})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, filepath.Join(cfg.VisualizedDir("cocorna", imagery.Sentinel2, "B4"), "cocorna_mean_visualized_2020-04-01_2020-06-30.tif"), outs[0])
}

func TestExportUnmasked(t *testing.T) {
	p, cfg := exportPipeline(t, emptyFirstRange{})
	outs, err := p.Export(context.Background(), ExportRequest{
		Site:      "cocorna",
		Satellite: imagery.Sentinel2,
		Bands:     []string{"B4"},
		StartYear: 2020,
		EndYear:   2020,
		Frequency: "quarterly",
		Unmasked:  true,
	})
	require.NoError(t, err)
	require.Len(t, outs, 6)
	assert.Contains(t, outs, filepath.Join(cfg.RawDir("cocorna", imagery.Sentinel2, "B4"), "cocorna_raw_2020-04-01_2020-06-30.tif"))
	assert.Contains(t, outs, filepath.Join(cfg.RawDir("cocorna", imagery.Sentinel2, "SCL"), "cocorna_raw_2020-04-01_2020-06-30.tif"))
}

func TestExportProductValidation(t *testing.T) {
	p, _ := exportPipeline(t, fixedCounter(1))
	_, err := p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel2, Frequency: "monthly", Visualize: true, Unmasked: true})
	require.ErrorIs(t, err, imagery.ErrUnsupportedProduct)

	_, err = p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel1, Orbit: "ascending", Frequency: "monthly", Unmasked: true})
	require.ErrorIs(t, err, imagery.ErrUnsupportedProduct)
}

func TestExportValidation(t *testing.T) {
	cfg := &properties.Config{RootPath: t.TempDir(), TileSize: 64, PollInterval: time.Millisecond, Workers: 1}
	exp := imagery.NewExporter(fakeRenderer{}, nil, storage.NewLocalSink(cfg.DataPath()), time.Millisecond)
	p := New(cfg, Deps{Exporter: exp})

	_, err := p.Export(context.Background(), ExportRequest{Site: "nowhere", Satellite: imagery.Sentinel2})
	require.ErrorIs(t, err, imagery.ErrUnknownSite)

	_, err = p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel1, Frequency: "monthly"})
	require.ErrorIs(t, err, imagery.ErrUnknownOrbit)

	_, err = p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel2, Reducer: "max", Frequency: "monthly"})
	require.ErrorIs(t, err, imagery.ErrUnknownReducer)

	_, err = p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel2, Bands: []string{"B99"}, Frequency: "monthly"})
	require.ErrorIs(t, err, imagery.ErrUnknownBand)

	_, err = p.Export(context.Background(), ExportRequest{Site: "cocorna", Satellite: imagery.Sentinel2, Frequency: "weekly"})
	require.ErrorIs(t, err, imagery.ErrUnknownFrequency)
}

func writeGradient(t *testing.T, path string, w, h int) {
	r := raster.New(w, h, testMeta)
	for i := range r.Data {
		r.Data[i] = float32(i % 50)
	}
	require.NoError(t, raster.WriteBytes(path, r))
}

func TestFuseAndTimelapse(t *testing.T) {
	p, cfg := testPipeline(t, Deps{})
	p.GeoTIFF = true
	for _, month := range []string{"2020-01", "2020-02"} {
		stem := month + "-01_" + month + "-28.tif"
		writeGradient(t, filepath.Join(cfg.IndexDir("site", imagery.Sentinel2, NDVI), "site_ndvi_"+stem), 24, 16)
		writeGradient(t, filepath.Join(cfg.IndexDir("site", imagery.Sentinel2, NDBI), "site_ndbi_"+stem), 12, 8)
		writeGradient(t, filepath.Join(cfg.DespeckledDir("site", imagery.Descending, "VH"), "site_filtered_"+stem), 30, 20)
	}

	outs, err := p.Fuse(context.Background(), "site", imagery.Descending)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(cfg.FusionDir("site"), "fusion_2020-01.png"),
		filepath.Join(cfg.FusionDir("site"), "fusion_2020-02.png"),
	}, outs)
	_, err = os.Stat(filepath.Join(cfg.FusionDir("site"), "fusion_2020-01.tif"))
	require.NoError(t, err)

	video, err := p.Timelapse(context.Background(), "site", 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.FusionDir("site"), "timelapse_site.avi"), video)
}

func TestFuseIndices(t *testing.T) {
	p, cfg := testPipeline(t, Deps{})
	for _, index := range []string{NDVI, NDBI, NDWI} {
		writeGradient(t, filepath.Join(cfg.IndexDir("site", imagery.Landsat8, index), "site_x_2021-03-01_2021-03-31.tif"), 10, 10)
	}
	outs, err := p.FuseIndices(context.Background(), "site", imagery.Landsat8)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.FusionDir("site"), imagery.Landsat8, "fusion_2021-03-01.png")}, outs)
}

func TestTimelapseWithoutFrames(t *testing.T) {
	p, _ := testPipeline(t, Deps{})
	_, err := p.Timelapse(context.Background(), "site", 2)
	require.ErrorIs(t, err, ErrNoInputs)
}

func TestPull(t *testing.T) {
	remote := storage.NewLocalSink(t.TempDir())
	_, err := remote.Put(context.Background(), "site/sentinel2/B4/a.tif", bytesReader("data"))
	require.NoError(t, err)

	p, cfg := testPipeline(t, Deps{Sink: remote})
	outs, err := p.Pull(context.Background(), "site/")
	require.NoError(t, err)
	want := cfg.DataPath("site", "sentinel2", "B4", "a.tif")
	assert.Equal(t, []string{want}, outs)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

// listSink serves a fixed key listing; Fetch writes the key as content.
type listSink struct {
	keys []string
}

func (s listSink) Put(context.Context, string, io.Reader) (string, error) { return "", nil }
func (s listSink) List(context.Context, string) ([]string, error)      { return s.keys, nil }
func (s listSink) Close() error                                         { return nil }
func (s listSink) Fetch(_ context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(localPath, []byte(key), 0o644)
}

type failingNotifier struct{}

func (failingNotifier) Success(string) error { return errors.New("webhook down") }
func (failingNotifier) Warn(string) error    { return errors.New("webhook down") }
func (failingNotifier) Error(string) error   { return errors.New("webhook down") }

func TestPullRejectsEscapingKeys(t *testing.T) {
	sink := listSink{keys: []string{"site/a.tif", "../evil.tif", "/etc/evil.tif"}}
	p, cfg := testPipeline(t, Deps{Sink: sink, Notifier: failingNotifier{}})

	outs, err := p.Pull(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.DataPath("site", "a.tif")}, outs)
	_, err = os.Stat(filepath.Join(filepath.Dir(cfg.DataPath()), "evil.tif"))
	require.True(t, os.IsNotExist(err))

	rows, err := ReadReport(filepath.Join(cfg.ReportDir(), "2024-06-01.csv"))
	require.NoError(t, err)
	failed := 0
	for _, r := range rows {
		if r.Status == StatusFailed {
			failed++
			assert.Contains(t, r.Error, ErrUnsafeKey.Error())
		}
	}
	assert.Equal(t, 2, failed)
}

func TestPullOnlyEscapingKeys(t *testing.T) {
	p, _ := testPipeline(t, Deps{Sink: listSink{keys: []string{"../evil.tif"}}})
	_, err := p.Pull(context.Background(), "")
	require.ErrorIs(t, err, ErrAllFailed)
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
