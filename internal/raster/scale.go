package raster

import "math"

// ScaleValue maps v from [-1,1] onto [0,255]. NaN and -Inf become 0 and
// +Inf becomes 1 before rescaling; the result is truncated, so NaN lands on
// 127.
func ScaleValue(v float32) uint8 {
	x := float64(v)
	switch {
	case math.IsNaN(x):
		x = 0
	case math.IsInf(x, 1):
		x = 1
	case math.IsInf(x, -1):
		x = 0
	}
	x = (x + 1) / 2 * 255
	if x < 0 {
		x = 0
	}
	if x > 255 {
		x = 255
	}
	return uint8(x)
}

// ScaleTo8Bit returns a raster holding the 8-bit values of r as floats, with
// r's metadata and a Byte data type.
func ScaleTo8Bit(r *Raster) *Raster {
	out := r.Derive()
	out.Meta.DataType = "Byte"
	out.Meta.NoData = nil
	for i, v := range r.Data {
		out.Data[i] = float32(ScaleValue(v))
	}
	return out
}
