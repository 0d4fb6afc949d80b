package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Recognizer prepares a page image for an Engine and filters its output.
type Recognizer struct {
	engine        Engine
	scale         float64
	threshold     uint8
	minConfidence float64
	languages     []string
	pageSegMode   int
}

// Option configures a Recognizer
type Option func(*Recognizer)

// WithScale sets the upscaling factor applied before recognition
func WithScale(scale float64) Option {
	return func(r *Recognizer) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

// WithThreshold sets the gray level under which a pixel becomes black
func WithThreshold(threshold uint8) Option {
	return func(r *Recognizer) { r.threshold = threshold }
}

// WithMinConfidence drops words recognized with a lower confidence
func WithMinConfidence(conf float64) Option {
	return func(r *Recognizer) { r.minConfidence = conf }
}

// WithLanguages sets the language hints passed to the engine
func WithLanguages(langs ...string) Option {
	return func(r *Recognizer) { r.languages = append([]string(nil), langs...) }
}

// WithPageSegMode sets the page segmentation mode passed to the engine
func WithPageSegMode(mode int) Option {
	return func(r *Recognizer) { r.pageSegMode = mode }
}

// NewRecognizer creates a Recognizer backed by engine
func NewRecognizer(engine Engine, opts ...Option) *Recognizer {
	r := &Recognizer{
		engine:        engine,
		scale:         2,
		threshold:     160,
		minConfidence: 60,
		languages:     []string{"eng"},
		pageSegMode:   3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize runs OCR on img and returns the words in img's pixel space
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]Word, error) {
	if r.engine == nil {
		return nil, errors.New("no OCR engine configured")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}

	prepared := Binarize(Upscale(img, r.scale), r.threshold)

	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words, err := r.engine.Recognize(ctx, Input{
		Image:       buf.Bytes(),
		Languages:   r.languages,
		PageSegMode: r.pageSegMode,
		Variables:   map[string]string{"preserve_interword_spaces": "1"},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.engine.Name(), err)
	}

	origin := img.Bounds().Min
	kept := make([]Word, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" || w.Confidence < r.minConfidence {
			continue
		}
		w.Box = w.Box.Scale(1 / r.scale)
		w.Box.X0 += float64(origin.X)
		w.Box.X1 += float64(origin.X)
		w.Box.Y0 += float64(origin.Y)
		w.Box.Y1 += float64(origin.Y)
		kept = append(kept, w)
	}
	return kept, nil
}

// Upscale resizes img by factor using Catmull-Rom interpolation. The result
// starts at the origin.
func Upscale(img image.Image, factor float64) *image.RGBA {
	b := img.Bounds()
	w := int(float64(b.Dx())*factor + 0.5)
	h := int(float64(b.Dy())*factor + 0.5)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Binarize maps every pixel to black or white depending on whether the mean
// of its RGB channels is under threshold.
func Binarize(img image.Image, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			avg := (uint16(c.R) + uint16(c.G) + uint16(c.B)) / 3
			if avg < uint16(threshold) {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}
