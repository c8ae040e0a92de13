// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/tiff"
)

// ImageMetadata carries scan provenance read from an image's EXIF block.
type ImageMetadata struct {
	Width    int
	Height   int
	Format   string
	ScanDate string
	Software string
}

// inspectImage decodes image dimensions and EXIF provenance without
// loading pixel data. Scanned signature pages usually carry the scanner
// software and scan date, which matter for the audit trail.
func inspectImage(path string, logger *slog.Logger) (*ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	meta := &ImageMetadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}

	// EXIF is optional; plenty of scans carry none
	if _, err := f.Seek(0, 0); err == nil {
		if x, err := exif.Decode(f); err == nil {
			if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
				meta.ScanDate = tag.String()
			} else if tag, err := x.Get(exif.DateTime); err == nil {
				meta.ScanDate = tag.String()
			}
			if tag, err := x.Get(exif.Software); err == nil {
				meta.Software = tag.String()
			}
		}
	}

	if meta.ScanDate != "" || meta.Software != "" {
		logger.Debug("image provenance",
			"file", path,
			"scan_date", meta.ScanDate,
			"software", meta.Software)
	}

	return meta, nil
}
