package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/pyhub-apps/pdfannotate/internal/fonts"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

const (
	defaultLineHeight = 1.16
	baselineRatio     = 0.8
)

// MaxPixels bounds the pixel count of a rasterized overlay
const MaxPixels = 1 << 26

// Rasterize renders snap onto a transparent pageW x pageH point canvas and
// returns it PNG encoded at multiplier pixels per point. Overlay coordinates
// are mapped from viewport space back to page points with the snapshot
// scale.
func Rasterize(snap Snapshot, pageW, pageH, multiplier float64) ([]byte, error) {
	img, err := Render(snap, pageW, pageH, multiplier)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// Render is Rasterize without the PNG encoding
func Render(snap Snapshot, pageW, pageH, multiplier float64) (image.Image, error) {
	if pageW <= 0 || pageH <= 0 {
		return nil, fmt.Errorf("invalid page size %.2fx%.2f", pageW, pageH)
	}
	if multiplier < 1 {
		multiplier = 1
	}
	if px := math.Round(pageW*multiplier) * math.Round(pageH*multiplier); px > MaxPixels {
		return nil, fmt.Errorf("overlay of %.0f pixels exceeds the limit of %d", px, MaxPixels)
	}

	objects, err := snapshotObjects(snap)
	if err != nil {
		return nil, err
	}

	c := canvas.New(pageW, pageH)
	ctx := canvas.NewContext(c)
	k := snap.NativeScale()

	for i, o := range objects {
		if !o.visible() {
			continue
		}
		if err := drawObject(ctx, o, k, pageH); err != nil {
			return nil, fmt.Errorf("%w: object %d (%s): %w", ErrOverlayLoadFailed, i, o.Type, err)
		}
	}

	return rasterizer.Draw(c, canvas.DPMM(multiplier), canvas.DefaultColorSpace), nil
}

func snapshotObjects(snap Snapshot) ([]Object, error) {
	if len(snap.Data) == 0 {
		return nil, nil
	}
	var doc struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOverlayLoadFailed, err)
	}
	objects, err := decodeObjects(doc.Objects)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOverlayLoadFailed, err)
	}
	return objects, nil
}

// drawObject places o with its own transform. Inside the pushed view one
// unit is one overlay unit and Y points up, so local y-down offsets are
// negated.
func drawObject(ctx *canvas.Context, o Object, k, pageH float64) error {
	fill, err := parseColor(o.Fill, o.opacity())
	if err != nil {
		return err
	}
	stroke, err := parseColor(o.Stroke, o.opacity())
	if err != nil {
		return err
	}

	sx, sy := o.scale()
	ctx.Push()
	defer ctx.Pop()
	ctx.Translate(o.Left*k, pageH-o.Top*k)
	if o.Angle != 0 {
		ctx.Rotate(-o.Angle)
	}
	ctx.Scale(k*sx, k*sy)

	w, h := o.size()
	ox, oy := o.anchor()

	switch o.Type {
	case "rect":
		p := canvas.Rectangle(w, h)
		if r := max(o.RX, o.RY); r > 0 {
			p = canvas.RoundedRectangle(w, h, r)
		}
		paint(ctx, fill, stroke, o.StrokeWidth)
		ctx.DrawPath(ox, -(oy + h), p)
	case "ellipse", "circle":
		paint(ctx, fill, stroke, o.StrokeWidth)
		ctx.DrawPath(ox+w/2, -(oy + h/2), canvas.Ellipse(w/2, h/2))
	case "line":
		if stroke == nil {
			stroke = color.Black
		}
		p := &canvas.Path{}
		p.MoveTo(o.X1+w/2+ox, -(o.Y1 + h/2 + oy))
		p.LineTo(o.X2+w/2+ox, -(o.Y2 + h/2 + oy))
		paint(ctx, nil, stroke, o.StrokeWidth)
		ctx.DrawPath(0, 0, p)
	case "path":
		p, err := buildPath(o, ox, oy)
		if err != nil {
			return err
		}
		paint(ctx, fill, stroke, o.StrokeWidth)
		ctx.DrawPath(0, 0, p)
	case "text", "i-text", "textbox":
		return drawText(ctx, o, fill, ox, oy)
	}
	return nil
}

func paint(ctx *canvas.Context, fill, stroke color.Color, width float64) {
	if fill == nil {
		fill = canvas.Transparent
	}
	ctx.SetFillColor(fill)
	if stroke == nil || width <= 0 {
		ctx.SetStrokeColor(canvas.Transparent)
		return
	}
	ctx.SetStrokeColor(stroke)
	ctx.SetStrokeWidth(width)
}

func buildPath(o Object, ox, oy float64) (*canvas.Path, error) {
	cmds, err := parsePath(o.Path)
	if err != nil {
		return nil, err
	}
	w, h := o.size()
	var off Point
	if o.PathOffset != nil {
		off = *o.PathOffset
	}
	dx := w/2 + ox - off.X
	dy := h/2 + oy - off.Y
	tx := func(x float64) float64 { return x + dx }
	ty := func(y float64) float64 { return -(y + dy) }

	p := &canvas.Path{}
	var cx, cy float64 // current point in path space
	need := func(c pathCommand, n int) error {
		if len(c.Args) < n {
			return fmt.Errorf("path command %s needs %d arguments, got %d", c.Op, n, len(c.Args))
		}
		return nil
	}
	for _, c := range cmds {
		var bx, by float64
		if c.Op == strings.ToLower(c.Op) {
			bx, by = cx, cy
		}
		switch strings.ToUpper(c.Op) {
		case "M":
			if err := need(c, 2); err != nil {
				return nil, err
			}
			cx, cy = bx+c.Args[0], by+c.Args[1]
			p.MoveTo(tx(cx), ty(cy))
		case "L":
			if err := need(c, 2); err != nil {
				return nil, err
			}
			cx, cy = bx+c.Args[0], by+c.Args[1]
			p.LineTo(tx(cx), ty(cy))
		case "H":
			if err := need(c, 1); err != nil {
				return nil, err
			}
			cx = bx + c.Args[0]
			p.LineTo(tx(cx), ty(cy))
		case "V":
			if err := need(c, 1); err != nil {
				return nil, err
			}
			cy = by + c.Args[0]
			p.LineTo(tx(cx), ty(cy))
		case "Q":
			if err := need(c, 4); err != nil {
				return nil, err
			}
			x1, y1 := bx+c.Args[0], by+c.Args[1]
			cx, cy = bx+c.Args[2], by+c.Args[3]
			p.QuadTo(tx(x1), ty(y1), tx(cx), ty(cy))
		case "C":
			if err := need(c, 6); err != nil {
				return nil, err
			}
			x1, y1 := bx+c.Args[0], by+c.Args[1]
			x2, y2 := bx+c.Args[2], by+c.Args[3]
			cx, cy = bx+c.Args[4], by+c.Args[5]
			p.CubeTo(tx(x1), ty(y1), tx(x2), ty(y2), tx(cx), ty(cy))
		case "Z":
			p.Close()
		}
	}
	return p, nil
}

func drawText(ctx *canvas.Context, o Object, fill color.Color, ox, oy float64) error {
	if strings.TrimSpace(o.Text) == "" || o.FontSize <= 0 {
		return nil
	}
	if fill == nil {
		return nil
	}

	style := canvas.FontRegular
	if o.bold() {
		style |= canvas.FontBold
	}
	if o.FontStyle == "italic" || o.FontStyle == "oblique" {
		style |= canvas.FontItalic
	}
	face, err := fonts.Face(o.FontSize, fill, style)
	if err != nil {
		return err
	}

	lineHeight := o.LineHeight
	if lineHeight <= 0 {
		lineHeight = defaultLineHeight
	}
	w, _ := o.size()
	for i, line := range strings.Split(o.Text, "\n") {
		if line == "" {
			continue
		}
		x := ox
		switch o.TextAlign {
		case "center":
			x += (w - face.TextWidth(line)) / 2
		case "right":
			x += w - face.TextWidth(line)
		}
		baseline := oy + float64(i)*lineHeight*o.FontSize + baselineRatio*o.FontSize
		ctx.DrawText(x, -baseline, canvas.NewTextLine(face, line, canvas.Left))
	}
	return nil
}
