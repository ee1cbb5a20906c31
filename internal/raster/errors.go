package raster

import "errors"

var (
	ErrShapeMismatch   = errors.New("raster shapes do not match")
	ErrEmptyRaster     = errors.New("raster is empty")
	ErrBandOutOfRange  = errors.New("band index out of range")
	ErrInvalidTif      = errors.New("invalid tif")
	ErrTifReadFailed   = errors.New("tif read failed")
	ErrTifWriteFailed  = errors.New("tif write failed")
	ErrMissingMaskBand = errors.New("mask band missing")
)
