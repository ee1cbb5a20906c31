package fusion

import (
	"time"

	"github.com/forest-guardian/satfusion/internal/utils"
)

// RadarPair is one monthly radar/optical composition.
type RadarPair struct {
	Month time.Time
	NDVI  string
	NDBI  string
	VH    string
}

// IndexTriple is one dated optical index composition.
type IndexTriple struct {
	Date time.Time
	NDVI string
	NDBI string
	NDWI string
}

// PairByYearMonth walks the NDVI and NDBI files in lockstep and matches each
// pair with the first VH file of the same month. Files without a date are
// skipped.
func PairByYearMonth(ndvi, ndbi, vh []string) []RadarPair {
	vhByMonth := map[time.Time][]string{}
	for _, f := range vh {
		month, ok := ExtractYearMonth(f)
		if !ok {
			continue
		}
		vhByMonth[month] = append(vhByMonth[month], f)
	}

	var pairs []RadarPair
	for i := 0; i < len(ndvi) && i < len(ndbi); i++ {
		month, ok := ExtractYearMonth(ndvi[i])
		if !ok {
			continue
		}
		candidates := vhByMonth[month]
		if len(candidates) == 0 {
			continue
		}
		pairs = append(pairs, RadarPair{Month: month, NDVI: ndvi[i], NDBI: ndbi[i], VH: candidates[0]})
	}
	return pairs
}

// PairByDate matches NDVI, NDBI and NDWI files sharing the same date. Dates
// missing any of the three are dropped.
func PairByDate(ndvi, ndbi, ndwi []string) []IndexTriple {
	byDate := func(files []string) map[time.Time]string {
		m := map[time.Time]string{}
		for _, f := range files {
			if d, ok := ExtractDate(f); ok {
				if _, seen := m[d]; !seen {
					m[d] = f
				}
			}
		}
		return m
	}
	ndviByDate, ndbiByDate, ndwiByDate := byDate(ndvi), byDate(ndbi), byDate(ndwi)

	var triples []IndexTriple
	for _, d := range utils.GetSortedKeys(ndviByDate, true) {
		b, okB := ndbiByDate[d]
		w, okW := ndwiByDate[d]
		if !okB || !okW {
			continue
		}
		triples = append(triples, IndexTriple{Date: d, NDVI: ndviByDate[d], NDBI: b, NDWI: w})
	}
	return triples
}
