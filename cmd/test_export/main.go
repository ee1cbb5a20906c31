package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/properties"
	"github.com/forest-guardian/satfusion/internal/raster"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/spf13/viper"
)

func main() {
	// Hardcoded test parameters - modify these to test different scenarios
	siteName := "cocorna"
	satName := imagery.Sentinel2
	band := "B4"
	dateRange := imagery.DateRange{Start: "2022-03-01", End: "2022-03-31"}

	fmt.Println("=== Satfusion Test Export ===")
	fmt.Printf("Site: %s\n", siteName)
	fmt.Printf("Satellite: %s, band %s\n", satName, band)
	fmt.Printf("Range: %s\n", dateRange)
	fmt.Println()

	if err := properties.LoadEnvFiles(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	cfg, err := properties.Load(viper.New())
	if err != nil {
		fail("Failed to load configuration", err)
	}
	if !cfg.HasCredentials() {
		fmt.Println("Make sure you have set the required environment variables:")
		fmt.Println("- COPERNICUS_CLIENT_ID")
		fmt.Println("- COPERNICUS_CLIENT_SECRET")
		fmt.Println("- COPERNICUS_TOKEN_URL")
		fmt.Println("- ROOT_PATH")
		os.Exit(1)
	}

	site, err := imagery.NewSites(cfg.GeoJSONDir()).Get(siteName)
	if err != nil {
		fail("Failed to get site", err)
	}
	sat, _ := imagery.LookupSatellite(satName)
	fmt.Println("✓ Site loaded successfully")

	client, err := imagery.NewClient(cfg.Copernicus)
	if err != nil {
		fail("Failed to create client", err)
	}
	sink := storage.NewLocalSink(cfg.DataPath())
	exporter := imagery.NewExporter(client, client, sink, cfg.PollInterval)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := exporter.Available(ctx, site, sat, "", dateRange); err != nil {
		fail("No images to export", err)
	}
	folder := fmt.Sprintf("%s/%s/%s", site.Name, sat.Name, band)
	location, err := exporter.ExportBand(ctx, site, imagery.ProcessRequest{
		Satellite: sat,
		Band:      band,
		Reducer:   imagery.Mean,
		Range:     dateRange,
	}, folder)
	if err != nil {
		fail("Export failed", err)
	}

	r, err := raster.Read(location)
	if err != nil {
		fail("Failed to read export", err)
	}
	lo, hi, _ := r.MinMax()

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("File: %s\n", location)
	fmt.Printf("Size: %dx%d\n", r.Width, r.Height)
	fmt.Printf("Range: %.4f .. %.4f\n", lo, hi)
	fmt.Println("\n✓ Test completed successfully!")
}

func fail(msg string, err error) {
	fmt.Printf("%s: %v\n", msg, err)
	os.Exit(1)
}
