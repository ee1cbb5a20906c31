package imagery

import (
	"context"
	"fmt"
	"time"

	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Counter reports how many scenes a collection holds for a region and range.
type Counter interface {
	Count(ctx context.Context, sat Satellite, orbit string, region orb.Polygon, r DateRange) (int, error)
}

// Exporter submits one export task per band and waits for it.
type Exporter struct {
	renderer Renderer
	counter  Counter
	sink     storage.Sink
	interval time.Duration
}

// NewExporter builds an Exporter. counter may be nil, in which case every
// range is assumed to hold images.
func NewExporter(renderer Renderer, counter Counter, sink storage.Sink, interval time.Duration) *Exporter {
	return &Exporter{renderer: renderer, counter: counter, sink: sink, interval: interval}
}

// Available returns ErrEmptyCollection when no scene of sat covers the site
// within r.
func (e *Exporter) Available(ctx context.Context, site Site, sat Satellite, orbit string, r DateRange) error {
	if e.counter == nil {
		return nil
	}
	n, err := e.counter.Count(ctx, sat, orbit, site.ROI, r)
	if err != nil {
		return fmt.Errorf("failed to count images for %s: %w", r, err)
	}
	if n == 0 {
		log.Info(logTag+"no images in range, skipping", zap.String("site", site.Name),
			zap.String("satellite", sat.Name), zap.String("range", r.String()))
		return fmt.Errorf("%w: %s %s", ErrEmptyCollection, sat.Name, r)
	}
	return nil
}

// ExportBand exports one band of req over the site and blocks until the
// task stops. The result is stored under folder with the site file prefix;
// the stored location is returned.
func (e *Exporter) ExportBand(ctx context.Context, site Site, req ProcessRequest, folder string) (string, error) {
	req.Region = site.ROI
	spec := ExportSpec{
		Request:    req,
		Folder:     folder,
		FilePrefix: req.Satellite.FilePrefix(site.Name, req.Reducer, req.Product, req.Range),
	}
	task := NewProcessTask(e.renderer, e.sink, spec)
	if err := task.Start(ctx); err != nil {
		return "", err
	}
	log.Info(logTag+"exporting", zap.String("band", req.Band), zap.String("key", spec.Key()))
	if err := Monitor(ctx, task, e.interval); err != nil {
		task.Cancel()
		return "", err
	}
	return task.Location(), nil
}
