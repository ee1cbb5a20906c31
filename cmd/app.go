package main

import (
	"context"
	"fmt"

	"github.com/forest-guardian/satfusion/internal/despeckle"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/notification"
	"github.com/forest-guardian/satfusion/internal/pipeline"
	"github.com/forest-guardian/satfusion/internal/properties"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds what every command needs, built once the flags are parsed.
type app struct {
	cfg      *properties.Config
	pipeline *pipeline.Pipeline
	notifier *notification.Discord
	closers  []func() error
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := properties.Load(v)
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.LogLevel, cfg.Environment); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a := &app{cfg: cfg, notifier: notification.NewDiscord(cfg.Discord)}

	sink, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sink.Close)

	var exporter *imagery.Exporter
	if cfg.HasCredentials() {
		client, err := imagery.NewClient(cfg.Copernicus)
		if err != nil {
			return nil, err
		}
		exporter = imagery.NewExporter(client, client, sink, cfg.PollInterval)
	} else {
		log.Warn("no imagery credentials configured, export is disabled")
	}

	denoiser, closeDenoiser, err := despeckle.Open(cfg.Denoiser, cfg.DenoiserAddr, cfg.DenoiserTimeout)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDenoiser)

	a.pipeline = pipeline.New(cfg, pipeline.Deps{
		Exporter: exporter,
		Sites:    imagery.NewSites(cfg.GeoJSONDir()),
		Sink:     sink,
		Denoiser: denoiser,
		Notifier: a.notifier,
	})
	a.pipeline.Quiet = v.GetBool("QUIET")

	log.Debug("configuration loaded", zap.String("root", cfg.RootPath), zap.String("storage", cfg.Storage.Backend),
		zap.String("denoiser", cfg.Denoiser), zap.Int("workers", cfg.Workers))
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn("failed to release resource", zap.Error(err))
		}
	}
}
