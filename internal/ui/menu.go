package ui

import (
	"context"
	"fmt"
	"os"

	"github.com/forest-guardian/satfusion/internal/pipeline"
)

type menuOption struct {
	title   string
	handler func()
}

// Menu drives the pipeline interactively.
type Menu struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	notifier pipeline.Notifier
}

func NewMenu(ctx context.Context, p *pipeline.Pipeline, n pipeline.Notifier) *Menu {
	return &Menu{ctx: ctx, pipeline: p, notifier: n}
}

// Show displays the main menu and handles user input
func (m *Menu) Show() {
	menuOptions := []menuOption{
		{"Export satellite bands for a site", m.Export},
		{"Apply the cloud mask to unmasked exports", m.Mask},
		{"Compute a spectral index (NDVI, NDWI, NDBI)", m.Indices},
		{"Despeckle Sentinel-1 images", m.Despeckle},
		{"Fuse Sentinel-1 VH with Sentinel-2 NDVI and NDBI", m.Fuse},
		{"Fuse the spectral indices of a satellite", m.FuseIndices},
		{"Create a time-lapse video of the fused images", m.Timelapse},
		{"Download exports from the object store", m.Pull},
		{"View the list of available sites", m.ListSites},
		{"View today's run report", m.RunReport},
		{"Exit the application", func() { fmt.Println("Exiting..."); os.Exit(0) }},
	}

	for {
		fmt.Println("\033[34m===================\033[0m")
		for i, opt := range menuOptions {
			fmt.Printf("\033[34m%d. %s\033[0m\n", i+1, opt.title)
		}

		choice, err := ReadInt("Please enter your choice: ", 1, len(menuOptions))
		if err != nil {
			PrintError(err.Error())
			continue
		}

		menuOptions[choice-1].handler()
	}
}
