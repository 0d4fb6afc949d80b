package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// orientOverlay turns an overlay raster drawn in unrotated page space
// clockwise by rotation degrees, matching how a viewer shows a page whose
// /Rotate is rotation.
func orientOverlay(data []byte, rotation int) ([]byte, error) {
	rotation = ((rotation % 360) + 360) % 360
	if rotation == 0 {
		return data, nil
	}
	if rotation%90 != 0 {
		return nil, fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode overlay: %w", err)
	}
	dst := rotateImage(src, rotation)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// rotateImage rotates img clockwise by a multiple of 90 degrees
func rotateImage(img image.Image, rotation int) *image.NRGBA {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	// s2d maps source coordinates, relative to b.Min, to destination ones
	var s2d f64.Aff3
	dw, dh := b.Dx(), b.Dy()
	switch rotation {
	case 90:
		s2d = f64.Aff3{0, -1, h, 1, 0, 0}
		dw, dh = dh, dw
	case 180:
		s2d = f64.Aff3{-1, 0, w, 0, -1, h}
	case 270:
		s2d = f64.Aff3{0, 1, 0, -1, 0, w}
		dw, dh = dh, dw
	default:
		s2d = f64.Aff3{1, 0, 0, 0, 1, 0}
	}
	s2d[2] -= s2d[0]*float64(b.Min.X) + s2d[1]*float64(b.Min.Y)
	s2d[5] -= s2d[3]*float64(b.Min.X) + s2d[4]*float64(b.Min.Y)

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	draw.NearestNeighbor.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}
