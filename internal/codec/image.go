package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"visionary/internal/domain"
)

// MimeTypeJPEG is the mime type of sampled screen frames.
const MimeTypeJPEG = "image/jpeg"

// EncodeJPEGFrame rasterizes img at its native size and encodes it as a
// base64 JPEG chunk. quality is in (0, 1].
func EncodeJPEGFrame(img image.Image, quality float64) (domain.MediaChunk, error) {
	if img == nil {
		return domain.MediaChunk{}, errors.New("no frame to encode")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return domain.MediaChunk{}, errors.New("frame has no pixels")
	}

	raster := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(raster, raster.Bounds(), img, bounds.Min, draw.Src)

	q := int(quality * 100)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: q}); err != nil {
		return domain.MediaChunk{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	return domain.MediaChunk{MimeType: MimeTypeJPEG, Data: Encode(buf.Bytes())}, nil
}
