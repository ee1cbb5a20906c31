package imagery

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/satfusion/internal/utils"
)

const (
	Landsat8   = "landsat8"
	Sentinel2  = "sentinel2"
	Sentinel1  = "sentinel1"
	Ascending  = "ASCENDING"
	Descending = "DESCENDING"
	Mean       = "mean"
	Median     = "median"
	First      = "first_find"
)

// Product selects what an export holds.
type Product string

const (
	// Analysis is cloud masked reflectance reduced over the range.
	Analysis Product = ""
	// Visualized is Analysis stretched to 8 bits over the band's VisRange.
	Visualized Product = "visualized"
	// Raw is the least cloudy scene in digital numbers, without masking, for
	// masking locally against the exported mask band.
	Raw Product = "raw"
)

// VisRange is the stretch used when a band is rendered for viewing.
type VisRange struct {
	Min, Max float64
}

// Satellite describes one image collection and how it is exported.
type Satellite struct {
	Name string
	// Collection is the catalogue id the datasets were published under.
	Collection string
	// ProcessType is the collection type understood by the process API.
	ProcessType string
	// Scale is the export resolution in metres.
	Scale float64
	// Bands maps catalogue band names to process API band names.
	Bands map[string]string
	// MaskBand is the process API band requested alongside every band for
	// cloud masking; MaskName is its catalogue name.
	MaskBand string
	MaskName string
	Radar    bool
}

var satellites = map[string]Satellite{
	Landsat8: {
		Name:        Landsat8,
		Collection:  "LANDSAT/LC08/C02/T1_L2",
		ProcessType: "landsat-ot-l2",
		Scale:       30,
		Bands: map[string]string{
			"SR_B1": "B01", "SR_B2": "B02", "SR_B3": "B03", "SR_B4": "B04",
			"SR_B5": "B05", "SR_B6": "B06", "SR_B7": "B07", "ST_B10": "B10",
		},
		MaskBand: "BQA",
		MaskName: "QA_PIXEL",
	},
	Sentinel2: {
		Name:        Sentinel2,
		Collection:  "COPERNICUS/S2_SR",
		ProcessType: "sentinel-2-l2a",
		Scale:       10,
		Bands: map[string]string{
			"B1": "B01", "B2": "B02", "B3": "B03", "B4": "B04", "B5": "B05", "B6": "B06",
			"B7": "B07", "B8": "B08", "B8A": "B8A", "B9": "B09", "B11": "B11", "B12": "B12",
		},
		MaskBand: "SCL",
		MaskName: "SCL",
	},
	Sentinel1: {
		Name:        Sentinel1,
		Collection:  "COPERNICUS/S1_GRD",
		ProcessType: "sentinel-1-grd",
		Scale:       10,
		Bands:       map[string]string{"VV": "VV", "VH": "VH"},
		Radar:       true,
	},
}

// LookupSatellite accepts the short name or the catalogue id.
func LookupSatellite(name string) (Satellite, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := satellites[key]; ok {
		return s, nil
	}
	for _, s := range satellites {
		if strings.EqualFold(s.Collection, name) {
			return s, nil
		}
	}
	return Satellite{}, fmt.Errorf("%w: %s", ErrUnknownSatellite, name)
}

func SatelliteNames() []string {
	return utils.SortedKeys(satellites)
}

// BandNames returns the catalogue band names in sorted order.
func (s Satellite) BandNames() []string {
	return utils.SortedKeys(s.Bands)
}

// ProcessBand maps a catalogue band, mask band included, to its process
// API name.
func (s Satellite) ProcessBand(band string) (string, error) {
	if band != "" && band == s.MaskName {
		return s.MaskBand, nil
	}
	b, ok := s.Bands[band]
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s", ErrUnknownBand, s.Name, band)
	}
	return b, nil
}

// ExportBands keeps the bands this satellite exports: SR_/ST_ for Landsat,
// B* for Sentinel-2 and VV/VH for Sentinel-1.
func (s Satellite) ExportBands(bands []string) []string {
	switch s.Name {
	case Landsat8:
		return FilterLandsat8Bands(bands)
	case Sentinel2:
		return FilterSentinel2Bands(bands)
	case Sentinel1:
		return FilterSentinel1Bands(bands)
	}
	return nil
}

// CheckProduct rejects products a satellite cannot export. Radar exports
// are always visualized backscatter.
func (s Satellite) CheckProduct(p Product) error {
	switch {
	case s.Radar && p != Analysis:
		return fmt.Errorf("%w: %s exports no %s product", ErrUnsupportedProduct, s.Name, p)
	case p != Analysis && p != Visualized && p != Raw:
		return fmt.Errorf("%w: %s", ErrUnsupportedProduct, p)
	}
	return nil
}

// FilePrefix is the export file name without extension:
// <site>_<reducer>_<start>_<end>, with "visualized" before the dates for
// visualized exports, "raw" in place of the reducer for raw ones and
// first_find for radar.
func (s Satellite) FilePrefix(site, reducer string, product Product, r DateRange) string {
	switch {
	case s.Radar:
		reducer = First
	case product == Raw:
		reducer = string(Raw)
	case product == Visualized:
		reducer += "_" + string(Visualized)
	}
	return fmt.Sprintf("%s_%s_%s_%s", site, reducer, r.Start, r.End)
}

// VisRange is the display stretch of a band of this satellite.
func (s Satellite) VisRange(band string) VisRange {
	switch s.Name {
	case Sentinel1:
		return RadarVisRange
	case Landsat8:
		return LandsatVisRange(band)
	}
	return VisRange{Min: 0, Max: 1}
}

func FilterLandsat8Bands(bands []string) []string {
	return filterBands(bands, func(b string) bool {
		return strings.HasPrefix(b, "SR") || strings.HasPrefix(b, "ST")
	})
}

func FilterSentinel2Bands(bands []string) []string {
	return filterBands(bands, func(b string) bool { return strings.HasPrefix(b, "B") })
}

func FilterSentinel1Bands(bands []string) []string {
	return filterBands(bands, func(b string) bool { return b == "VV" || b == "VH" })
}

// HasVVVH reports whether both radar polarisations are present.
func HasVVVH(bands []string) bool {
	var vv, vh bool
	for _, b := range bands {
		vv = vv || b == "VV"
		vh = vh || b == "VH"
	}
	return vv && vh
}

// LandsatVisRange returns the display stretch for a Landsat band.
func LandsatVisRange(band string) VisRange {
	switch {
	case strings.HasPrefix(band, "SR"):
		return VisRange{Min: 0, Max: 1}
	case strings.HasPrefix(band, "ST"):
		return VisRange{Min: 270, Max: 310}
	default:
		return VisRange{Min: 0, Max: 255}
	}
}

// RadarVisRange is the backscatter stretch in dB.
var RadarVisRange = VisRange{Min: -25, Max: 5}

func CheckReducer(reducer string) error {
	switch reducer {
	case Mean, Median:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownReducer, reducer)
}

func NormalizeOrbit(orbit string) (string, error) {
	switch o := strings.ToUpper(strings.TrimSpace(orbit)); o {
	case Ascending, Descending:
		return o, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownOrbit, orbit)
}

func filterBands(bands []string, keep func(string) bool) []string {
	var out []string
	for _, b := range bands {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
