package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/forest-guardian/satfusion/internal/despeckle"
	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/pipeline"
	"github.com/forest-guardian/satfusion/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// newRootCmd wires every subcommand. Without a subcommand the interactive
// menu starts.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var a *app

	root := &cobra.Command{
		Use:           "satfusion",
		Short:         "Export satellite imagery and fuse radar and optical rasters",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "denoiser" {
				return nil
			}
			var err error
			a, err = newApp(cmd.Context(), v)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()
			ui.NewMenu(cmd.Context(), a.pipeline, a.notifier).Show()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("root", "", "project root holding the data folder (ROOT_PATH)")
	flags.Int("workers", 0, "files processed in parallel (WORKERS)")
	flags.Int("tile-size", 0, "despeckle tile edge in pixels (TILE_SIZE)")
	flags.String("denoiser", "", "grpc, median or identity (DENOISER)")
	flags.String("denoiser-addr", "", "address of the denoiser service (DENOISER_ADDR)")
	flags.String("storage", "", "local, s3 or gcs (STORAGE)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	flags.Bool("quiet", false, "hide progress bars")
	for key, name := range map[string]string{
		"ROOT_PATH":     "root",
		"WORKERS":       "workers",
		"TILE_SIZE":     "tile-size",
		"DENOISER":      "denoiser",
		"DENOISER_ADDR": "denoiser-addr",
		"STORAGE":       "storage",
		"LOG_LEVEL":     "log-level",
		"QUIET":         "quiet",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	current := func() *app { return a }
	root.AddCommand(
		exportCmd(current),
		maskCmd(current),
		indicesCmd(current),
		despeckleCmd(current),
		fuseCmd(current),
		fuseIndicesCmd(current),
		timelapseCmd(current),
		pullCmd(current),
		sitesCmd(current),
		reportCmd(current),
		denoiserCmd(),
	)
	return root
}

// signalContext cancels on Ctrl-C so running tasks stop cleanly.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func report(a *app, step string, outputs []string, err error, start time.Time) error {
	if err != nil {
		notify(a.notifier.Error(fmt.Sprintf("%s failed: %s", step, err.Error())))
		return err
	}
	msg := fmt.Sprintf("%s finished!\n - Files: %d\n - Processing time: %s", step, len(outputs), time.Since(start).Round(time.Second))
	ui.PrintSuccess(msg)
	notify(a.notifier.Success(msg))
	return nil
}

func notify(err error) {
	if err != nil {
		log.Warn("failed to send notification", zap.Error(err))
	}
}

func exportCmd(current func() *app) *cobra.Command {
	var req pipeline.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export bands of a satellite over a site, one file per date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			start := time.Now()
			outputs, err := current().pipeline.Export(ctx, req)
			return report(current(), fmt.Sprintf("Export of %s %s", req.Site, req.Satellite), outputs, err, start)
		},
	}
	year := time.Now().Year()
	cmd.Flags().StringVar(&req.Site, "site", "", "site name")
	cmd.Flags().StringVar(&req.Satellite, "satellite", imagery.Sentinel2, strings.Join(imagery.SatelliteNames(), ", "))
	cmd.Flags().StringSliceVar(&req.Bands, "bands", nil, "bands to export, all when empty")
	cmd.Flags().IntVar(&req.StartYear, "start-year", year, "first year")
	cmd.Flags().IntVar(&req.EndYear, "end-year", year, "last year")
	cmd.Flags().StringVar(&req.Frequency, "frequency", "monthly", strings.Join(imagery.Frequencies(), ", "))
	cmd.Flags().StringVar(&req.Reducer, "reducer", imagery.Mean, "mean or median, optical only")
	cmd.Flags().StringVar(&req.Orbit, "orbit", "", "ascending or descending, Sentinel-1 only")
	cmd.Flags().BoolVar(&req.Visualize, "visualize", false, "export 8-bit stretched images, optical only")
	cmd.Flags().BoolVar(&req.Unmasked, "unmasked", false, "export raw digital numbers and the mask band, optical only")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func maskCmd(current func() *app) *cobra.Command {
	var site, satellite string
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Apply the cloud mask to unmasked exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			start := time.Now()
			outputs, err := current().pipeline.Mask(ctx, site, satellite)
			return report(current(), fmt.Sprintf("Masking of %s %s", site, satellite), outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&satellite, "satellite", imagery.Sentinel2, "sentinel2 or landsat8")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func reportCmd(current func() *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the run report of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				var err error
				if day, err = time.Parse("2006-01-02", date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}
			rows, err := current().pipeline.RunReport(day)
			if err != nil {
				return err
			}
			ui.PrintReport(rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD, today when empty")
	return cmd
}

func indicesCmd(current func() *app) *cobra.Command {
	var site, satellite, index string
	var preview bool
	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Compute an 8-bit NDVI, NDWI or NDBI raster for every exported date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			p := current().pipeline
			p.Previews = preview
			start := time.Now()
			outputs, err := p.Indices(ctx, site, satellite, index)
			return report(current(), fmt.Sprintf("%s of %s %s", strings.ToUpper(index), site, satellite), outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&satellite, "satellite", imagery.Sentinel2, "sentinel2 or landsat8")
	cmd.Flags().StringVar(&index, "index", pipeline.NDVI, "NDVI, NDWI or NDBI")
	cmd.Flags().BoolVar(&preview, "preview", false, "render colour JPEG previews")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func despeckleCmd(current func() *app) *cobra.Command {
	var site, orbit, polarization string
	cmd := &cobra.Command{
		Use:   "despeckle",
		Short: "Despeckle the Sentinel-1 exports of one orbit and polarization",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			start := time.Now()
			outputs, err := current().pipeline.Despeckle(ctx, site, orbit, polarization)
			return report(current(), fmt.Sprintf("Despeckle of %s %s %s", site, orbit, polarization), outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&orbit, "orbit", imagery.Descending, "ascending or descending")
	cmd.Flags().StringVar(&polarization, "polarization", "VH", "VH or VV")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func fuseCmd(current func() *app) *cobra.Command {
	var site, orbit string
	var geotiff bool
	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Compose monthly VH/NDVI/NDBI RGB images",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			p := current().pipeline
			p.GeoTIFF = geotiff
			start := time.Now()
			outputs, err := p.Fuse(ctx, site, orbit)
			return report(current(), "Fusion of "+site, outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&orbit, "orbit", imagery.Descending, "orbit of the despeckled VH images")
	cmd.Flags().BoolVar(&geotiff, "geotiff", false, "also write 3-band GeoTIFFs")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func fuseIndicesCmd(current func() *app) *cobra.Command {
	var site, satellite string
	var geotiff bool
	cmd := &cobra.Command{
		Use:   "fuse-indices",
		Short: "Compose dated NDBI/NDVI/NDWI RGB images",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			p := current().pipeline
			p.GeoTIFF = geotiff
			start := time.Now()
			outputs, err := p.FuseIndices(ctx, site, satellite)
			return report(current(), fmt.Sprintf("Index fusion of %s %s", site, satellite), outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&satellite, "satellite", imagery.Sentinel2, "sentinel2 or landsat8")
	cmd.Flags().BoolVar(&geotiff, "geotiff", false, "also write 3-band GeoTIFFs")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func timelapseCmd(current func() *app) *cobra.Command {
	var site string
	var fps int32
	cmd := &cobra.Command{
		Use:   "timelapse",
		Short: "Encode the fused images of a site as an AVI",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			video, err := current().pipeline.Timelapse(cmd.Context(), site, fps)
			if err == nil {
				ui.PrintInfo("Video located at: " + video + "\n")
			}
			return report(current(), "Time-lapse of "+site, []string{video}, err, start)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().Int32Var(&fps, "fps", 2, "frames per second")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func pullCmd(current func() *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download exports from the configured object store into the data folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			start := time.Now()
			outputs, err := current().pipeline.Pull(ctx, prefix)
			return report(current(), "Download", outputs, err, start)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix, e.g. cocorna/sentinel1/")
	return cmd
}

func sitesCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the available sites",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range current().pipeline.Sites() {
				fmt.Println(name)
			}
		},
	}
}

// denoiserCmd serves the local median denoiser over gRPC, for running the
// pipeline without the model service.
func denoiserCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "denoiser",
		Short: "Serve the median denoiser on the despeckle gRPC API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init("info", "local"); err != nil {
				return err
			}
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err != nil {
				return fmt.Errorf("failed to listen on port %d: %w", port, err)
			}
			s := grpc.NewServer(grpc.MaxRecvMsgSize(10*1024*1024), grpc.MaxSendMsgSize(10*1024*1024))
			despeckle.RegisterServer(s, despeckle.MedianDenoiser{})

			ctx, cancel := signalContext(cmd)
			defer cancel()
			go func() {
				<-ctx.Done()
				s.GracefulStop()
			}()
			log.Info("denoiser listening", zap.Int("port", port))
			fmt.Printf("\033[32mUsing port: %d\033[0m\n", port)
			return s.Serve(lis)
		},
	}
	cmd.Flags().IntVar(&port, "port", 50051, "port to listen on")
	return cmd
}
