// Package capture normalizes a captured photo before it enters the body-log
// pipeline.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/disintegration/imaging"

	"bodylog-backend/internal/bodylog"
)

var ErrUnreadableImage = errors.New("capture: unreadable image")

const (
	defaultMaxDimension = 1600
	defaultJPEGQuality  = 85
)

type Preparer struct {
	maxDimension int
	quality      int
}

func NewPreparer(maxDimension, quality int) *Preparer {
	if maxDimension <= 0 {
		maxDimension = defaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	return &Preparer{maxDimension: maxDimension, quality: quality}
}

// Prepare decodes data, applies EXIF orientation, fits it within the maximum
// dimension and re-encodes it as JPEG. Empty input is ErrNoImage.
func (p *Preparer) Prepare(data []byte, filename string) (bodylog.LocalHandle, error) {
	if len(data) == 0 {
		return bodylog.LocalHandle{}, bodylog.ErrNoImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return bodylog.LocalHandle{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return bodylog.LocalHandle{}, fmt.Errorf("failed to encode image: %w", err)
	}

	return bodylog.LocalHandle{
		Data:        buf.Bytes(),
		Filename:    jpegName(filename),
		ContentType: "image/jpeg",
	}, nil
}

func jpegName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "capture"
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ".jpg"
}
