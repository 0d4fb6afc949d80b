package overlay

import (
	"encoding/json"
	"fmt"
)

// Point is a 2D coordinate in overlay space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is a single fabric-style overlay object. Only the fields the
// rasterizer understands are modelled; unknown fields survive in the raw
// editor document.
type Object struct {
	Type        string          `json:"type"`
	Left        float64         `json:"left"`
	Top         float64         `json:"top"`
	Width       float64         `json:"width,omitempty"`
	Height      float64         `json:"height,omitempty"`
	ScaleX      float64         `json:"scaleX,omitempty"`
	ScaleY      float64         `json:"scaleY,omitempty"`
	Angle       float64         `json:"angle,omitempty"`
	OriginX     string          `json:"originX,omitempty"`
	OriginY     string          `json:"originY,omitempty"`
	Fill        *string         `json:"fill"`
	Stroke      *string         `json:"stroke,omitempty"`
	StrokeWidth float64         `json:"strokeWidth,omitempty"`
	Opacity     *float64        `json:"opacity,omitempty"`
	Visible     *bool           `json:"visible,omitempty"`
	RX          float64         `json:"rx,omitempty"`
	RY          float64         `json:"ry,omitempty"`
	Radius      float64         `json:"radius,omitempty"`
	X1          float64         `json:"x1,omitempty"`
	Y1          float64         `json:"y1,omitempty"`
	X2          float64         `json:"x2,omitempty"`
	Y2          float64         `json:"y2,omitempty"`
	Path        [][]any         `json:"path,omitempty"`
	PathOffset  *Point          `json:"pathOffset,omitempty"`
	Text        string          `json:"text,omitempty"`
	FontSize    float64         `json:"fontSize,omitempty"`
	FontFamily  string          `json:"fontFamily,omitempty"`
	FontWeight  json.RawMessage `json:"fontWeight,omitempty"`
	FontStyle   string          `json:"fontStyle,omitempty"`
	LineHeight  float64         `json:"lineHeight,omitempty"`
	TextAlign   string          `json:"textAlign,omitempty"`
}

// String returns a pointer to s, for optional color fields
func String(s string) *string { return &s }

// Float returns a pointer to f
func Float(f float64) *float64 { return &f }

func (o Object) scale() (float64, float64) {
	sx, sy := o.ScaleX, o.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

func (o Object) opacity() float64 {
	if o.Opacity == nil {
		return 1
	}
	return *o.Opacity
}

func (o Object) visible() bool {
	return o.Visible == nil || *o.Visible
}

// size returns the unscaled extent of the object
func (o Object) size() (float64, float64) {
	switch o.Type {
	case "ellipse":
		if o.Width == 0 && o.Height == 0 {
			return 2 * o.RX, 2 * o.RY
		}
	case "circle":
		if o.Width == 0 && o.Height == 0 {
			return 2 * o.Radius, 2 * o.Radius
		}
	case "line":
		if o.Width == 0 && o.Height == 0 {
			return abs(o.X2 - o.X1), abs(o.Y2 - o.Y1)
		}
	}
	return o.Width, o.Height
}

// anchor returns the offset from the object's (left, top) point to its
// top-left corner, in unscaled local units.
func (o Object) anchor() (float64, float64) {
	w, h := o.size()
	var ox, oy float64
	switch o.OriginX {
	case "center":
		ox = -w / 2
	case "right":
		ox = -w
	}
	switch o.OriginY {
	case "center":
		oy = -h / 2
	case "bottom":
		oy = -h
	}
	return ox, oy
}

func (o Object) bold() bool {
	if len(o.FontWeight) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(o.FontWeight, &s); err == nil {
		return s == "bold" || s == "bolder" || s >= "600" && len(s) == 3
	}
	var n float64
	if err := json.Unmarshal(o.FontWeight, &n); err == nil {
		return n >= 600
	}
	return false
}

// pathCommand is one segment of a fabric path, e.g. ["Q", x1, y1, x, y]
type pathCommand struct {
	Op   string
	Args []float64
}

func parsePath(raw [][]any) ([]pathCommand, error) {
	cmds := make([]pathCommand, 0, len(raw))
	for i, seg := range raw {
		if len(seg) == 0 {
			continue
		}
		op, ok := seg[0].(string)
		if !ok {
			return nil, fmt.Errorf("path segment %d: missing command", i)
		}
		args := make([]float64, 0, len(seg)-1)
		for _, v := range seg[1:] {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("path segment %d: non-numeric argument %v", i, v)
			}
			args = append(args, f)
		}
		cmds = append(cmds, pathCommand{Op: op, Args: args})
	}
	return cmds, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
