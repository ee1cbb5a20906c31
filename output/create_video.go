package output

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/icza/mjpeg"
)

var ErrNoFrames = errors.New("no frames to encode")

// CreateVideoFromImages encodes the images, in order, as an MJPEG AVI at fps
// frames per second. Every frame must match the size of the first one.
func CreateVideoFromImages(imagePaths []string, outputPath string, fps int32) (string, error) {
	if len(imagePaths) == 0 {
		return "", ErrNoFrames
	}
	if !strings.HasSuffix(outputPath, ".avi") {
		outputPath += ".avi"
	}
	if fps < 1 {
		fps = 2
	}

	first, err := decode(imagePaths[0])
	if err != nil {
		return "", err
	}
	bounds := first.Bounds()

	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create folder for %s: %w", outputPath, err)
	}
	writer, err := mjpeg.New(outputPath, int32(bounds.Dx()), int32(bounds.Dy()), fps)
	if err != nil {
		return "", err
	}

	for i, path := range imagePaths {
		img := first
		if i > 0 {
			if img, err = decode(path); err != nil {
				writer.Close()
				return "", err
			}
		}
		if img.Bounds().Size() != bounds.Size() {
			writer.Close()
			return "", fmt.Errorf("frame %s is %v, expected %v", filepath.Base(path), img.Bounds().Size(), bounds.Size())
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
			writer.Close()
			return "", err
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		return "", err
	}
	return outputPath, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
