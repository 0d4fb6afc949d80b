// Package overlay holds the per-page vector overlays drawn on top of a
// document and turns them into images for export.
//
// Overlay documents are opaque to everything but the editor that produced
// them. The only structure the package relies on is a top-level "objects"
// array, which is what fabric-style editors emit.
package overlay

import (
	"encoding/json"
	"errors"
)

// ErrOverlayLoadFailed is returned when a stored overlay can not be applied
// to an editor or decoded for rasterization.
var ErrOverlayLoadFailed = errors.New("overlay load failed")

// Snapshot is a serialized overlay together with the viewport scale its
// coordinates were captured at. A Scale of zero means native page units.
type Snapshot struct {
	Data  json.RawMessage `json:"data"`
	Scale float64         `json:"scale"`
}

// IsEmpty reports whether the snapshot carries no drawable objects
func (s Snapshot) IsEmpty() bool {
	if len(s.Data) == 0 {
		return true
	}
	var doc struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(s.Data, &doc); err != nil {
		return false
	}
	return len(doc.Objects) == 0
}

// NativeScale returns the factor that maps snapshot coordinates to page
// points.
func (s Snapshot) NativeScale() float64 {
	if s.Scale <= 0 {
		return 1
	}
	return 1 / s.Scale
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Data: append(json.RawMessage(nil), s.Data...), Scale: s.Scale}
}
