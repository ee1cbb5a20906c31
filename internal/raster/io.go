package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/satfusion/internal/log"
	"go.uber.org/zap"
)

const logTag = "raster: "

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// gdalErrors drops GDAL warnings and turns everything else into errors.
var gdalErrors = godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
	if ec < godal.CE_Failure {
		log.Debug(logTag+"gdal warning", zap.Int("code", code), zap.String("msg", msg))
		return nil
	}
	return fmt.Errorf("gdal error %d: %s", code, msg)
})

// Read loads the first band of a georeferenced raster as float32.
func Read(path string) (*Raster, error) {
	return ReadBand(path, 1)
}

// ReadBand loads band n (1-based).
func ReadBand(path string, n int) (*Raster, error) {
	register()
	ds, err := godal.Open(path, godal.RasterOnly(), gdalErrors)
	if err != nil {
		log.Error(logTag+"open tif failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTif, path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if n < 1 || n > len(bands) {
		return nil, fmt.Errorf("%w: band %d of %d in %s", ErrBandOutOfRange, n, len(bands), path)
	}
	st := ds.Structure()
	band := bands[n-1]

	meta := Meta{
		Projection: ds.Projection(),
		DataType:   band.Structure().DataType.String(),
	}
	if gt, err := ds.GeoTransform(); err == nil {
		meta.GeoTransform = gt
		meta.HasGeoTransform = true
	}
	if nd, ok := band.NoData(); ok {
		meta.NoData = &nd
	}

	r := New(st.SizeX, st.SizeY, meta)
	if err := band.Read(0, 0, r.Data, st.SizeX, st.SizeY); err != nil {
		log.Error(logTag+"read tif band failed", zap.String("path", path), zap.Int("band", n), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrTifReadFailed, path, err)
	}
	log.Debug(logTag+"read tif band", zap.String("path", path), zap.Int("width", st.SizeX), zap.Int("height", st.SizeY))
	return r, nil
}

// Write stores r as a one-band Float32 GeoTIFF.
func Write(path string, r *Raster) error {
	return writeBands(path, godal.Float32, r.Width, r.Height, r.Meta, r.Data)
}

// WriteBytes stores r as a one-band Byte GeoTIFF, clipping and truncating
// samples to uint8.
func WriteBytes(path string, r *Raster) error {
	return writeBands(path, godal.Byte, r.Width, r.Height, r.Meta, r.Bytes())
}

// WriteRGB stores three equally sized 8-bit channels as a 3-band GeoTIFF.
func WriteRGB(path string, width, height int, meta Meta, red, green, blue []uint8) error {
	for _, c := range [][]uint8{red, green, blue} {
		if len(c) != width*height {
			return fmt.Errorf("%w: channel has %d samples for %dx%d", ErrShapeMismatch, len(c), width, height)
		}
	}
	return writeBands(path, godal.Byte, width, height, meta, red, green, blue)
}

func writeBands(path string, dtype godal.DataType, width, height int, meta Meta, bands ...interface{}) (err error) {
	if width == 0 || height == 0 {
		return ErrEmptyRaster
	}
	register()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", path, err)
	}

	ds, err := godal.Create(godal.GTiff, path, len(bands), dtype, width, height, gdalErrors)
	if err != nil {
		log.Error(logTag+"create tif failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrTifWriteFailed, path, err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing %s: %v", ErrTifWriteFailed, path, cerr)
		}
	}()

	if meta.HasGeoTransform {
		if err := ds.SetGeoTransform(meta.GeoTransform); err != nil {
			return fmt.Errorf("%w: geotransform: %v", ErrTifWriteFailed, err)
		}
	}
	if meta.Projection != "" {
		if err := ds.SetProjection(meta.Projection); err != nil {
			return fmt.Errorf("%w: projection: %v", ErrTifWriteFailed, err)
		}
	}

	dsBands := ds.Bands()
	for i, buf := range bands {
		if meta.NoData != nil && dtype == godal.Float32 {
			if err := dsBands[i].SetNoData(*meta.NoData); err != nil {
				return fmt.Errorf("%w: nodata: %v", ErrTifWriteFailed, err)
			}
		}
		if err := dsBands[i].Write(0, 0, buf, width, height); err != nil {
			log.Error(logTag+"write tif band failed", zap.String("path", path), zap.Int("band", i+1), zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrTifWriteFailed, path, err)
		}
	}
	log.Debug(logTag+"wrote tif", zap.String("path", path), zap.Int("bands", len(bands)))
	return nil
}
