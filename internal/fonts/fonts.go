// Package fonts provides the Go font family used for overlay text and page
// previews, loaded once per process.
package fonts

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// pointsPerMM converts canvas units to the point size expected by Face.
// Canvases in this module use one unit per PDF point.
const pointsPerMM = 72.0 / 25.4

var (
	once   sync.Once
	family *canvas.FontFamily
	err    error
)

// Family returns the shared Go font family.
func Family() (*canvas.FontFamily, error) {
	once.Do(func() {
		ff := canvas.NewFontFamily("go")
		faces := []struct {
			ttf   []byte
			style canvas.FontStyle
		}{
			{goregular.TTF, canvas.FontRegular},
			{gobold.TTF, canvas.FontBold},
			{goitalic.TTF, canvas.FontRegular | canvas.FontItalic},
			{gobolditalic.TTF, canvas.FontBold | canvas.FontItalic},
		}
		for _, f := range faces {
			if lerr := ff.LoadFont(f.ttf, 0, f.style); lerr != nil {
				err = fmt.Errorf("failed to load go font: %w", lerr)
				return
			}
		}
		family = ff
	})
	return family, err
}

// Face returns a face whose em size is size canvas units.
func Face(size float64, col color.Color, style canvas.FontStyle) (*canvas.FontFace, error) {
	ff, err := Family()
	if err != nil {
		return nil, err
	}
	return ff.Face(size*pointsPerMM, col, style, canvas.FontNormal), nil
}
