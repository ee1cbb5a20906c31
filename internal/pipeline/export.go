package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/log"
	"go.uber.org/zap"
)

// ExportRequest selects what Export downloads: bands of one satellite over
// a site, one file per date range between StartYear and EndYear.
type ExportRequest struct {
	Site      string
	Satellite string
	// Bands defaults to every band the satellite exports.
	Bands     []string
	StartYear int
	EndYear   int
	Frequency string
	Reducer   string
	// Orbit is required for Sentinel-1.
	Orbit string
	// Visualize exports 8-bit renderings stretched over each band's display
	// range, under <band>/visualized.
	Visualize bool
	// Unmasked exports the least cloudy scene of every range without masking,
	// plus the mask band, under <band>/raw for Mask to process locally.
	Unmasked bool
}

func (req ExportRequest) product() imagery.Product {
	switch {
	case req.Unmasked:
		return imagery.Raw
	case req.Visualize:
		return imagery.Visualized
	}
	return imagery.Analysis
}

// Export submits one task per range and band and waits for each. Ranges
// without images are skipped and recorded; when every range is empty the
// export succeeds with no files.
func (p *Pipeline) Export(ctx context.Context, req ExportRequest) ([]string, error) {
	if p.exporter == nil {
		return nil, errors.New("export needs imagery credentials")
	}
	site, err := p.sites.Get(req.Site)
	if err != nil {
		return nil, err
	}
	sat, err := imagery.LookupSatellite(req.Satellite)
	if err != nil {
		return nil, err
	}
	if req.Unmasked && req.Visualize {
		return nil, fmt.Errorf("%w: unmasked exports cannot be visualized", imagery.ErrUnsupportedProduct)
	}
	product := req.product()
	if err := sat.CheckProduct(product); err != nil {
		return nil, err
	}

	bands := req.Bands
	if len(bands) == 0 {
		bands = sat.BandNames()
	}
	bands = sat.ExportBands(bands)
	for _, b := range bands {
		if _, err := sat.ProcessBand(b); err != nil {
			return nil, err
		}
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no exportable bands in %v", imagery.ErrUnknownBand, req.Bands)
	}
	if product == imagery.Raw && !slices.Contains(bands, sat.MaskName) {
		bands = append(bands, sat.MaskName)
	}

	reducer := req.Reducer
	orbit := ""
	if sat.Radar {
		if orbit, err = imagery.NormalizeOrbit(req.Orbit); err != nil {
			return nil, err
		}
		reducer = imagery.First
	} else {
		if reducer == "" {
			reducer = imagery.Mean
		}
		if err := imagery.CheckReducer(reducer); err != nil {
			return nil, err
		}
	}

	ranges, err := imagery.GenerateDateRanges(req.StartYear, req.EndYear, req.Frequency)
	if err != nil {
		return nil, err
	}

	var (
		jobs    []job
		skipped int
	)
	for _, r := range ranges {
		if err := p.exporter.Available(ctx, site, sat, orbit, r); err != nil {
			if errors.Is(err, imagery.ErrEmptyCollection) {
				p.report.Add(RunRecord{
					Time: p.Now().Format(time.RFC3339), Step: "export", Site: site.Name,
					Satellite: sat.Name, Input: r.String(), Status: StatusSkipped, Error: err.Error(),
				})
				skipped++
				continue
			}
			return nil, err
		}
		for _, band := range bands {
			folder, err := p.dataKey(p.exportDir(site.Name, sat, orbit, band, product))
			if err != nil {
				return nil, err
			}
			req := imagery.ProcessRequest{
				Satellite: sat,
				Band:      band,
				Reducer:   reducer,
				Orbit:     orbit,
				Product:   product,
				Range:     r,
			}
			jobs = append(jobs, job{
				input: fmt.Sprintf("%s %s", band, r),
				run: func(ctx context.Context) (string, error) {
					return p.exporter.ExportBand(ctx, site, req, folder)
				},
			})
		}
	}

	log.Info(logTag+"export planned", zap.String("site", site.Name), zap.String("satellite", sat.Name),
		zap.String("bands", strings.Join(bands, ",")), zap.Int("ranges", len(ranges)),
		zap.Int("skipped", skipped), zap.Int("tasks", len(jobs)))
	if len(jobs) == 0 && skipped > 0 {
		p.flushReport()
		return nil, nil
	}
	return p.runStep(ctx, "export", site.Name, sat.Name, jobs)
}

func (p *Pipeline) exportDir(site string, sat imagery.Satellite, orbit, band string, product imagery.Product) string {
	switch {
	case sat.Radar:
		return p.cfg.RadarDir(site, orbit, band)
	case product == imagery.Raw:
		return p.cfg.RawDir(site, sat.Name, band)
	case product == imagery.Visualized:
		return p.cfg.VisualizedDir(site, sat.Name, band)
	}
	return p.cfg.BandDir(site, sat.Name, band)
}
