package pipeline

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/utils"
)

const (
	NDVI = "NDVI"
	NDWI = "NDWI"
	NDBI = "NDBI"
)

// IndexBands names the two bands of a normalized difference (A-B)/(A+B).
type IndexBands struct {
	A, B string
}

var indexBands = map[string]map[string]IndexBands{
	imagery.Sentinel2: {
		NDVI: {A: "B8", B: "B4"},
		NDWI: {A: "B3", B: "B8"},
		NDBI: {A: "B11", B: "B8"},
	},
	imagery.Landsat8: {
		NDVI: {A: "SR_B5", B: "SR_B4"},
		NDWI: {A: "SR_B5", B: "SR_B3"},
		NDBI: {A: "SR_B6", B: "SR_B5"},
	},
}

func LookupIndex(satellite, index string) (IndexBands, error) {
	bands, ok := indexBands[satellite][strings.ToUpper(index)]
	if !ok {
		return IndexBands{}, fmt.Errorf("%w: %s for %s", ErrUnknownIndex, index, satellite)
	}
	return bands, nil
}

// Indices lists the indices available for satellite.
func Indices(satellite string) []string {
	return utils.SortedKeys(indexBands[satellite])
}
