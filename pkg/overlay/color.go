package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// parseColor understands the CSS color forms editors emit: hex, rgb(),
// rgba() and named colors. A nil result means "no paint".
func parseColor(s *string, opacity float64) (color.Color, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" || v == "none" || v == "transparent" {
		return nil, nil
	}

	var c color.NRGBA
	switch {
	case strings.HasPrefix(v, "#"):
		parsed, err := parseHex(v[1:])
		if err != nil {
			return nil, err
		}
		c = parsed
	case strings.HasPrefix(v, "rgb"):
		parsed, err := parseRGB(v)
		if err != nil {
			return nil, err
		}
		c = parsed
	default:
		named, ok := colornames.Map[v]
		if !ok {
			return nil, fmt.Errorf("unknown color %q", *s)
		}
		c = color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}
	}

	c.A = uint8(float64(c.A)*clamp01(opacity) + 0.5)
	return c, nil
}

func parseHex(h string) (color.NRGBA, error) {
	if len(h) == 3 || len(h) == 4 {
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	}
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	if len(h) == 6 {
		return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

func parseRGB(v string) (color.NRGBA, error) {
	open := strings.IndexByte(v, '(')
	end := strings.LastIndexByte(v, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}
	parts := strings.Split(v[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", v, err)
		}
		ch[i] = uint8(clamp(f, 0, 255))
	}
	alpha := 1.0
	if len(parts) == 4 {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", v, err)
		}
		alpha = clamp01(f)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: uint8(alpha*255 + 0.5)}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }
