package raster

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Bands holds co-registered single-band rasters keyed by band name.
type Bands map[string]*Raster

func (b Bands) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Scene classification classes removed from Sentinel-2 L2A: cloud shadow,
// cloud high probability, thin cirrus.
var sentinel2MaskedClasses = map[int]bool{3: true, 9: true, 10: true}

var sentinel2OpticalBands = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B8A", "B9", "B11", "B12"}

const (
	landsatCloudBit  = 1 << 3
	landsatShadowBit = 1 << 4
)

// MaskSentinel2 blanks samples whose SCL class is shadow, cloud or cirrus
// and converts the optical bands to reflectance. Only the optical bands
// are returned.
func MaskSentinel2(in Bands) (Bands, error) {
	scl, ok := in["SCL"]
	if !ok {
		return nil, fmt.Errorf("%w: SCL", ErrMissingMaskBand)
	}
	out := Bands{}
	for _, name := range sentinel2OpticalBands {
		b, ok := in[name]
		if !ok {
			continue
		}
		if !b.SameShape(scl) {
			return nil, fmt.Errorf("%w: %s vs SCL", ErrShapeMismatch, name)
		}
		r := b.Derive()
		for i, v := range b.Data {
			if sentinel2MaskedClasses[int(scl.Data[i])] {
				r.Data[i] = float32(math.NaN())
				continue
			}
			r.Data[i] = v * 0.0001
		}
		out[name] = r
	}
	return out, nil
}

// MaskLandsat8 blanks samples flagged as cloud or cloud shadow in QA_PIXEL
// and applies the Collection 2 scale factors: SR_* to reflectance, ST_* to
// kelvin. Bands with other prefixes are dropped.
func MaskLandsat8(in Bands) (Bands, error) {
	qa, ok := in["QA_PIXEL"]
	if !ok {
		return nil, fmt.Errorf("%w: QA_PIXEL", ErrMissingMaskBand)
	}
	out := Bands{}
	for name, b := range in {
		var scale, offset float32
		switch {
		case strings.HasPrefix(name, "SR_B"):
			scale, offset = 0.0000275, -0.2
		case strings.HasPrefix(name, "ST_B"):
			scale, offset = 0.00341802, 149
		default:
			continue
		}
		if !b.SameShape(qa) {
			return nil, fmt.Errorf("%w: %s vs QA_PIXEL", ErrShapeMismatch, name)
		}
		r := b.Derive()
		for i, v := range b.Data {
			flags := int(qa.Data[i])
			if flags&landsatCloudBit != 0 || flags&landsatShadowBit != 0 {
				r.Data[i] = float32(math.NaN())
				continue
			}
			r.Data[i] = v*scale + offset
		}
		out[name] = r
	}
	return out, nil
}
