package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/pipeline"
	"go.uber.org/zap"
)

func (m *Menu) readSite() (string, error) {
	return SelectOption("Sites", m.pipeline.Sites())
}

// finish reports the outcome of a step on screen and to the notifier.
func (m *Menu) finish(step string, outputs []string, err error, start time.Time) {
	if err != nil {
		PrintError(fmt.Sprintf("%s failed: %s", step, err.Error()))
		if !errors.Is(err, pipeline.ErrNoInputs) {
			notify(m.notifier.Error(fmt.Sprintf("%s failed: %s", step, err.Error())))
		}
		return
	}
	msg := fmt.Sprintf("%s finished!\n - Files: %d\n - Processing time: %s", step, len(outputs), time.Since(start).Round(time.Second))
	PrintSuccess(msg)
	notify(m.notifier.Success(msg))
}

func notify(err error) {
	if err != nil {
		log.Warn("failed to send notification", zap.Error(err))
	}
}

// Export handles the UI for exporting bands
func (m *Menu) Export() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	satName, err := ReadSatellite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	sat, _ := imagery.LookupSatellite(satName)
	req := pipeline.ExportRequest{Site: site, Satellite: sat.Name, Bands: ReadBands(sat)}

	if req.StartYear, req.EndYear, err = ReadYearRange(); err != nil {
		PrintError(err.Error())
		return
	}
	if req.Frequency, err = SelectOption("Frequencies", imagery.Frequencies()); err != nil {
		PrintError(err.Error())
		return
	}
	if sat.Radar {
		req.Orbit, err = ReadOrbit()
	} else {
		req.Reducer, err = SelectOption("Reducers", []string{imagery.Mean, imagery.Median})
	}
	if err != nil {
		PrintError(err.Error())
		return
	}
	if !sat.Radar {
		product, err := SelectOption("Products", []string{"analysis", string(imagery.Visualized), string(imagery.Raw)})
		if err != nil {
			PrintError(err.Error())
			return
		}
		req.Visualize = product == string(imagery.Visualized)
		req.Unmasked = product == string(imagery.Raw)
	}

	PrintWarning("The exported files will be written under data/" + site)
	start := time.Now()
	outputs, err := m.pipeline.Export(m.ctx, req)
	m.finish(fmt.Sprintf("Export of %s %s", site, sat.Name), outputs, err, start)
}

// Mask handles the UI for masking unmasked exports locally
func (m *Menu) Mask() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	sat, err := ReadSatellite(imagery.Landsat8, imagery.Sentinel2)
	if err != nil {
		PrintError(err.Error())
		return
	}

	start := time.Now()
	outputs, err := m.pipeline.Mask(m.ctx, site, sat)
	m.finish(fmt.Sprintf("Masking of %s %s", site, sat), outputs, err, start)
}

// Indices handles the UI for index computation
func (m *Menu) Indices() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	sat, err := ReadSatellite(imagery.Landsat8, imagery.Sentinel2)
	if err != nil {
		PrintError(err.Error())
		return
	}
	index, err := SelectOption("Indices", pipeline.Indices(sat))
	if err != nil {
		PrintError(err.Error())
		return
	}
	m.pipeline.Previews = ReadYes("Render colour previews?")

	start := time.Now()
	outputs, err := m.pipeline.Indices(m.ctx, site, sat, index)
	m.finish(fmt.Sprintf("%s of %s %s", index, site, sat), outputs, err, start)
}

// Despeckle handles the UI for radar despeckling
func (m *Menu) Despeckle() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	orbit, err := ReadOrbit()
	if err != nil {
		PrintError(err.Error())
		return
	}
	pol, err := SelectOption("Polarizations", []string{"VH", "VV"})
	if err != nil {
		PrintError(err.Error())
		return
	}

	start := time.Now()
	outputs, err := m.pipeline.Despeckle(m.ctx, site, orbit, pol)
	m.finish(fmt.Sprintf("Despeckle of %s %s %s", site, strings.ToLower(orbit), pol), outputs, err, start)
}

// Fuse handles the UI for radar and optical fusion
func (m *Menu) Fuse() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	orbit, err := ReadOrbit()
	if err != nil {
		PrintError(err.Error())
		return
	}
	m.pipeline.GeoTIFF = ReadYes("Also write GeoTIFFs?")

	start := time.Now()
	outputs, err := m.pipeline.Fuse(m.ctx, site, orbit)
	m.finish("Fusion of "+site, outputs, err, start)
}

// FuseIndices handles the UI for index fusion
func (m *Menu) FuseIndices() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	sat, err := ReadSatellite(imagery.Landsat8, imagery.Sentinel2)
	if err != nil {
		PrintError(err.Error())
		return
	}
	m.pipeline.GeoTIFF = ReadYes("Also write GeoTIFFs?")

	start := time.Now()
	outputs, err := m.pipeline.FuseIndices(m.ctx, site, sat)
	m.finish(fmt.Sprintf("Index fusion of %s %s", site, sat), outputs, err, start)
}

// Timelapse handles the UI for the fusion video
func (m *Menu) Timelapse() {
	site, err := m.readSite()
	if err != nil {
		PrintError(err.Error())
		return
	}
	fps, err := ReadPositiveInt("Enter frames per second: ")
	if err != nil {
		PrintError(err.Error())
		return
	}

	start := time.Now()
	video, err := m.pipeline.Timelapse(m.ctx, site, int32(fps))
	var outputs []string
	if err == nil {
		outputs = []string{video}
		PrintInfo("Video located at: " + video + "\n")
	}
	m.finish("Time-lapse of "+site, outputs, err, start)
}

// Pull handles the UI for syncing exports from the object store
func (m *Menu) Pull() {
	prefix := ReadString("Enter the key prefix to download (empty for everything): ")
	start := time.Now()
	outputs, err := m.pipeline.Pull(m.ctx, prefix)
	m.finish("Download", outputs, err, start)
}

// RunReport handles the UI for viewing today's run report
func (m *Menu) RunReport() {
	rows, err := m.pipeline.RunReport(time.Now())
	if err != nil {
		PrintError(err.Error())
		return
	}
	PrintReport(rows)
}

// ListSites handles the UI for viewing the list of available sites
func (m *Menu) ListSites() {
	PrintWarning("To add a new site, add its '.geojson' file at 'data/geojsons' folder.")

	fmt.Printf("\n%sAvailable sites:%s\n", ColorGreen, ColorReset)
	for _, name := range m.pipeline.Sites() {
		fmt.Printf("%s- %s%s\n", ColorGreen, name, ColorReset)
	}
}
