package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"sar-coreg/pkg/geometry"

	_ "golang.org/x/image/tiff"
)

// imageWindow returns the full extent of the image at path as a
// normalization window. Only the header is decoded.
func imageWindow(path string) (geometry.Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.Window{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return geometry.Window{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if cfg.Width < 2 || cfg.Height < 2 {
		return geometry.Window{}, fmt.Errorf("%s: %s image %dx%d too small for a window", path, format, cfg.Width, cfg.Height)
	}
	return geometry.WindowFromBounds(image.Rect(0, 0, cfg.Width, cfg.Height)), nil
}
