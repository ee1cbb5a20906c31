package raster

import "sort"

// Median3x3 applies a 3x3 median filter. Border pixels use replicated
// neighbours so the output keeps r's shape.
func Median3x3(r *Raster) *Raster {
	out := r.Derive()
	var win [9]float32
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clampInt(y+dy, 0, r.Height-1)
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, r.Width-1)
					win[k] = r.Data[yy*r.Width+xx]
					k++
				}
			}
			s := win[:]
			sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
			out.Data[y*r.Width+x] = s[4]
		}
	}
	return out
}

// MinMaxNormalize rescales r to [0,1]. A raster whose range is below
// minRange comes back as zeros.
func MinMaxNormalize(r *Raster, minRange float32) *Raster {
	out := r.Derive()
	lo, hi, ok := r.MinMax()
	if !ok || hi-lo < minRange {
		return out
	}
	span := hi - lo
	for i, v := range r.Data {
		if isNaN(v) {
			continue
		}
		out.Data[i] = (v - lo) / span
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
