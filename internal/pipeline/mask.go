package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/satfusion/internal/fusion"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/raster"
)

const maskedTag = "masked"

type maskFunc func(raster.Bands) (raster.Bands, error)

func cloudMask(sat imagery.Satellite) (maskFunc, error) {
	switch sat.Name {
	case imagery.Sentinel2:
		return raster.MaskSentinel2, nil
	case imagery.Landsat8:
		return raster.MaskLandsat8, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCloudMask, sat.Name)
}

// Mask applies the cloud mask locally to unmasked exports. Every raw band
// file is matched with the mask band file of the same range; the result is
// written to the band folder as <site>_masked_<start>_<end>.tif, next to the
// remotely masked exports, so Indices picks it up.
func (p *Pipeline) Mask(ctx context.Context, site, satellite string) ([]string, error) {
	sat, err := imagery.LookupSatellite(satellite)
	if err != nil {
		return nil, err
	}
	apply, err := cloudMask(sat)
	if err != nil {
		return nil, err
	}
	maskDir := p.cfg.RawDir(site, sat.Name, sat.MaskName)

	var jobs []job
	for _, band := range sat.BandNames() {
		files, err := fusion.ListTifs(p.cfg.RawDir(site, sat.Name, band))
		if err != nil {
			return nil, err
		}
		outDir := p.cfg.BandDir(site, sat.Name, band)
		for _, path := range files {
			name := filepath.Base(path)
			maskPath := filepath.Join(maskDir, name)
			out := filepath.Join(outDir, maskedName(name))
			jobs = append(jobs, job{
				input: path,
				run: func(context.Context) (string, error) {
					return out, maskFile(apply, band, path, sat.MaskName, maskPath, out)
				},
			})
		}
	}
	return p.runStep(ctx, "mask", site, sat.Name, jobs)
}

func maskFile(apply maskFunc, band, path, maskBand, maskPath, out string) error {
	r, err := raster.Read(path)
	if err != nil {
		return err
	}
	m, err := raster.Read(maskPath)
	if err != nil {
		return fmt.Errorf("mask band for %s: %w", filepath.Base(path), err)
	}
	masked, err := apply(raster.Bands{band: r, maskBand: m})
	if err != nil {
		return err
	}
	res, ok := masked[band]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCloudMask, band)
	}
	return raster.Write(out, res)
}

// maskedName swaps the raw tag of an export name for the masked one.
func maskedName(name string) string {
	return strings.Replace(name, "_"+string(imagery.Raw)+"_", "_"+maskedTag+"_", 1)
}
