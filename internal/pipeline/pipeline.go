package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forest-guardian/satfusion/internal/despeckle"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/properties"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const logTag = "pipeline: "

// Notifier receives run outcomes.
type Notifier interface {
	Success(msg string) error
	Warn(msg string) error
	Error(msg string) error
}

type nopNotifier struct{}

func (nopNotifier) Success(string) error { return nil }
func (nopNotifier) Warn(string) error    { return nil }
func (nopNotifier) Error(string) error   { return nil }

// Deps are the collaborators a Pipeline drives. Exporter is only needed for
// Export and Sink only for Pull.
type Deps struct {
	Exporter *imagery.Exporter
	Sites    *imagery.Sites
	Sink     storage.Sink
	Denoiser despeckle.Denoiser
	Notifier Notifier
}

// Pipeline runs the export and post-processing steps for any site and
// satellite, laid out under the configured data folder.
type Pipeline struct {
	cfg      *properties.Config
	exporter *imagery.Exporter
	sites    *imagery.Sites
	sink     storage.Sink
	denoiser despeckle.Denoiser
	notifier Notifier
	report   *Report

	// Previews renders a colour JPEG next to every index raster.
	Previews bool
	// GeoTIFF writes a 3-band GeoTIFF next to every fusion PNG.
	GeoTIFF bool
	// Quiet hides progress bars.
	Quiet bool
	Now   func() time.Time
}

func New(cfg *properties.Config, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		exporter: deps.Exporter,
		sites:    deps.Sites,
		sink:     deps.Sink,
		denoiser: deps.Denoiser,
		notifier: deps.Notifier,
		report:   NewReport(cfg.ReportDir()),
		Now:      time.Now,
	}
	if p.sites == nil {
		p.sites = imagery.NewSites(cfg.GeoJSONDir())
	}
	if p.denoiser == nil {
		p.denoiser = despeckle.Identity
	}
	if p.notifier == nil {
		p.notifier = nopNotifier{}
	}
	return p
}

func (p *Pipeline) Sites() []string {
	return p.sites.Names()
}

// job is one item of a step. run returns the path it produced.
type job struct {
	input string
	run   func(ctx context.Context) (string, error)
}

// runStep fans jobs out over the worker pool and records every outcome.
// It fails only when every job failed; partial failures are reported
// through the notifier. The produced paths are returned sorted.
func (p *Pipeline) runStep(ctx context.Context, step, site, satellite string, jobs []job) ([]string, error) {
	if len(jobs) == 0 {
		log.Warn(logTag+"nothing to process", zap.String("step", step), zap.String("site", site))
		p.flushReport()
		return nil, fmt.Errorf("%w: %s %s", ErrNoInputs, step, site)
	}
	log.Info(logTag+"starting step", zap.String("step", step), zap.String("site", site),
		zap.String("satellite", satellite), zap.Int("items", len(jobs)))

	var (
		mu          sync.Mutex
		errors      []string
		outputs     []string
		progressBar = p.progress(len(jobs), fmt.Sprintf("%s %s", step, site))
	)

	wp := workerpool.New(p.cfg.Workers)
	for _, j := range jobs {
		wp.Submit(func() {
			start := p.Now()
			var (
				out string
				err = ctx.Err()
			)
			if err == nil {
				out, err = j.run(ctx)
			}
			rec := RunRecord{
				Time:      start.Format(time.RFC3339),
				Step:      step,
				Site:      site,
				Satellite: satellite,
				Input:     filepath.Base(j.input),
				Output:    out,
				Status:    StatusOK,
				Duration:  time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				rec.Status = StatusFailed
				rec.Error = err.Error()
				log.Error(logTag+"item failed", zap.String("step", step), zap.String("input", j.input), zap.Error(err))
			}
			p.report.Add(rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errors = append(errors, fmt.Sprintf("%s: %v", filepath.Base(j.input), err))
			} else if out != "" {
				outputs = append(outputs, out)
			}
			if err := progressBar.Add(1); err != nil {
				log.Warn(logTag+"failed to update progress", zap.Error(err))
			}
		})
	}
	wp.StopWait()
	p.flushReport()

	sort.Strings(outputs)
	if len(errors) == len(jobs) {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrAllFailed, step, site, strings.Join(errors, "; "))
	}
	if len(errors) > 0 {
		msg := fmt.Sprintf("%s for %s completed with %d errors.\n Errors: %s",
			step, site, len(errors), strings.Join(errors, "\n"))
		if err := p.notifier.Warn(msg); err != nil {
			log.Warn(logTag+"failed to send notification", zap.Error(err))
		}
	}
	log.Info(logTag+"step done", zap.String("step", step), zap.String("site", site),
		zap.Int("ok", len(jobs)-len(errors)), zap.Int("failed", len(errors)))
	return outputs, nil
}

// flushReport writes pending run records. A report failure never fails a
// step.
func (p *Pipeline) flushReport() {
	if path, err := p.report.Flush(p.Now()); err != nil {
		log.Warn(logTag+"failed to write run report", zap.Error(err))
	} else if path != "" {
		log.Debug(logTag+"run report updated", zap.String("path", path))
	}
}

// RunReport loads the records written on day.
func (p *Pipeline) RunReport(day time.Time) ([]*RunRecord, error) {
	return ReadReport(p.report.Path(day))
}

func (p *Pipeline) progress(n int, desc string) *progressbar.ProgressBar {
	if p.Quiet {
		return progressbar.DefaultSilent(int64(n), desc)
	}
	return progressbar.Default(int64(n), desc)
}

// dataKey turns a path under the data folder into a sink key.
func (p *Pipeline) dataKey(dir string) (string, error) {
	rel, err := filepath.Rel(p.cfg.DataPath(), dir)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
