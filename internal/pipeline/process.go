package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/satfusion/internal/despeckle"
	"github.com/forest-guardian/satfusion/internal/fusion"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/raster"
	"github.com/forest-guardian/satfusion/output"
)

// Indices computes one normalized difference index for every exported date
// of a satellite. Band files are paired in sorted order.
func (p *Pipeline) Indices(ctx context.Context, site, satellite, index string) ([]string, error) {
	sat, err := imagery.LookupSatellite(satellite)
	if err != nil {
		return nil, err
	}
	index = strings.ToUpper(index)
	bands, err := LookupIndex(sat.Name, index)
	if err != nil {
		return nil, err
	}
	aFiles, err := fusion.ListTifs(p.cfg.BandDir(site, sat.Name, bands.A))
	if err != nil {
		return nil, err
	}
	bFiles, err := fusion.ListTifs(p.cfg.BandDir(site, sat.Name, bands.B))
	if err != nil {
		return nil, err
	}
	outDir := p.cfg.IndexDir(site, sat.Name, index)

	var jobs []job
	for i := 0; i < len(aFiles) && i < len(bFiles); i++ {
		aPath, bPath := aFiles[i], bFiles[i]
		out := filepath.Join(outDir, fusion.IndexOutputName(aPath, index))
		jobs = append(jobs, job{
			input: aPath,
			run: func(context.Context) (string, error) {
				return out, p.computeIndex(aPath, bPath, out, index)
			},
		})
	}
	return p.runStep(ctx, "indices "+index, site, sat.Name, jobs)
}

func (p *Pipeline) computeIndex(aPath, bPath, out, index string) error {
	a, err := raster.Read(aPath)
	if err != nil {
		return err
	}
	b, err := raster.Read(bPath)
	if err != nil {
		return err
	}
	nd, err := raster.NormalizedDifference(a, b)
	if err != nil {
		return err
	}
	if err := raster.WriteBytes(out, raster.ScaleTo8Bit(nd)); err != nil {
		return err
	}
	if p.Previews {
		if _, err := output.CreateIndexPreview(out, index); err != nil {
			return fmt.Errorf("failed to render preview: %w", err)
		}
	}
	return nil
}

// Despeckle filters the Sentinel-1 exports of one orbit and polarization.
// Only rasters larger than a tile go through the denoiser; every file is
// saved to the filtered folder with first_find renamed to filtered.
func (p *Pipeline) Despeckle(ctx context.Context, site, orbit, polarization string) ([]string, error) {
	orbit, err := imagery.NormalizeOrbit(orbit)
	if err != nil {
		return nil, err
	}
	files, err := fusion.ListTifs(p.cfg.RadarDir(site, orbit, polarization))
	if err != nil {
		return nil, err
	}
	outDir := p.cfg.DespeckledDir(site, orbit, polarization)

	var jobs []job
	for _, path := range files {
		out := filepath.Join(outDir, strings.Replace(filepath.Base(path), imagery.First, "filtered", 1))
		jobs = append(jobs, job{
			input: path,
			run: func(ctx context.Context) (string, error) {
				return out, p.despeckleFile(ctx, path, out)
			},
		})
	}
	return p.runStep(ctx, "despeckle "+strings.ToUpper(polarization), site, imagery.Sentinel1, jobs)
}

func (p *Pipeline) despeckleFile(ctx context.Context, path, out string) error {
	proc, err := raster.Load(path)
	if err != nil {
		return err
	}
	if despeckle.NeedsTiling(proc.Raster, p.cfg.TileSize) {
		err := proc.Apply(func(r *raster.Raster) (*raster.Raster, error) {
			return despeckle.TileDespeckleStitch(ctx, r, p.cfg.TileSize, p.denoiser)
		})
		if err != nil {
			return err
		}
	}
	return proc.Save(out)
}

// Fuse builds the monthly radar/optical compositions of a site from the
// Sentinel-2 NDVI and NDBI rasters and the despeckled VH rasters of orbit.
func (p *Pipeline) Fuse(ctx context.Context, site, orbit string) ([]string, error) {
	orbit, err := imagery.NormalizeOrbit(orbit)
	if err != nil {
		return nil, err
	}
	ndvi, err := fusion.ListTifs(p.cfg.IndexDir(site, imagery.Sentinel2, NDVI))
	if err != nil {
		return nil, err
	}
	ndbi, err := fusion.ListTifs(p.cfg.IndexDir(site, imagery.Sentinel2, NDBI))
	if err != nil {
		return nil, err
	}
	vh, err := fusion.ListTifs(p.cfg.DespeckledDir(site, orbit, "VH"))
	if err != nil {
		return nil, err
	}
	outDir := p.cfg.FusionDir(site)
	opts := fusion.Options{GeoTIFF: p.GeoTIFF}

	var jobs []job
	for _, pair := range fusion.PairByYearMonth(ndvi, ndbi, vh) {
		jobs = append(jobs, job{
			input: pair.NDVI,
			run: func(context.Context) (string, error) {
				return fusion.FuseRadar(pair, outDir, opts)
			},
		})
	}
	return p.runStep(ctx, "fuse", site, imagery.Sentinel1, jobs)
}

// FuseIndices builds the dated NDBI/NDVI/NDWI compositions of one optical
// satellite under fusion/<satellite>.
func (p *Pipeline) FuseIndices(ctx context.Context, site, satellite string) ([]string, error) {
	sat, err := imagery.LookupSatellite(satellite)
	if err != nil {
		return nil, err
	}
	lists := map[string][]string{}
	for _, index := range []string{NDVI, NDBI, NDWI} {
		if lists[index], err = fusion.ListTifs(p.cfg.IndexDir(site, sat.Name, index)); err != nil {
			return nil, err
		}
	}
	outDir := filepath.Join(p.cfg.FusionDir(site), sat.Name)
	opts := fusion.Options{GeoTIFF: p.GeoTIFF}

	var jobs []job
	for _, triple := range fusion.PairByDate(lists[NDVI], lists[NDBI], lists[NDWI]) {
		jobs = append(jobs, job{
			input: triple.NDVI,
			run: func(context.Context) (string, error) {
				return fusion.FuseIndices(triple, outDir, opts)
			},
		})
	}
	return p.runStep(ctx, "fuse indices", site, sat.Name, jobs)
}

// Timelapse encodes the radar fusion PNGs of a site, in date order, into
// fusion/timelapse_<site>.avi.
func (p *Pipeline) Timelapse(ctx context.Context, site string, fps int32) (string, error) {
	dir := p.cfg.FusionDir(site)
	frames, err := fusion.ListPNGs(dir)
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("%w: no fusion images in %s", ErrNoInputs, dir)
	}
	out, err := p.runStep(ctx, "timelapse", site, "", []job{{
		input: dir,
		run: func(context.Context) (string, error) {
			return output.CreateVideoFromImages(frames, filepath.Join(dir, "timelapse_"+site), fps)
		},
	}})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// Pull copies every object under prefix from the sink into the data
// folder, so exports written to a bucket can be post-processed locally.
func (p *Pipeline) Pull(ctx context.Context, prefix string) ([]string, error) {
	if p.sink == nil {
		return nil, fmt.Errorf("%w: no storage configured", ErrNoInputs)
	}
	keys, err := p.sink.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var jobs []job
	for _, key := range keys {
		rel := filepath.FromSlash(key)
		if !filepath.IsLocal(rel) {
			jobs = append(jobs, job{
				input: key,
				run: func(context.Context) (string, error) {
					return "", fmt.Errorf("%w: %s", ErrUnsafeKey, key)
				},
			})
			continue
		}
		local := p.cfg.DataPath(rel)
		jobs = append(jobs, job{
			input: key,
			run: func(ctx context.Context) (string, error) {
				return local, p.sink.Fetch(ctx, key, local)
			},
		})
	}
	return p.runStep(ctx, "pull", prefix, "", jobs)
}
