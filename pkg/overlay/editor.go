package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
)

// Editor is the live overlay editor the session persists from and restores
// into. Serialize must round-trip exactly through Load.
type Editor interface {
	Serialize() (json.RawMessage, error)
	Load(doc json.RawMessage) error
	Clear()
}

// ViewportSetter is implemented by editors whose canvas follows the size of
// the rendered page.
type ViewportSetter interface {
	SetViewport(width, height, zoom float64)
}

// TextSink is implemented by editors that can place recognized text
type TextSink interface {
	AddRecognizedText(words []ocr.Word) error
}

const defaultVersion = "5.3.0"

// MemoryEditor is an Editor holding a fabric-style document in memory. It
// is what headless sessions and the CLI drive.
type MemoryEditor struct {
	mu      sync.Mutex
	loaded  json.RawMessage
	dirty   bool
	extra   map[string]json.RawMessage
	objects []json.RawMessage

	width, height, zoom float64
}

// NewMemoryEditor creates an empty editor
func NewMemoryEditor() *MemoryEditor {
	e := &MemoryEditor{}
	e.reset()
	return e
}

func (e *MemoryEditor) reset() {
	e.loaded = nil
	e.dirty = true
	e.extra = map[string]json.RawMessage{"version": json.RawMessage(`"` + defaultVersion + `"`)}
	e.objects = nil
}

// Serialize returns the editor document. An unmodified document is returned
// exactly as it was loaded.
func (e *MemoryEditor) Serialize() (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty && e.loaded != nil {
		return append(json.RawMessage(nil), e.loaded...), nil
	}

	doc := make(map[string]json.RawMessage, len(e.extra)+1)
	for k, v := range e.extra {
		doc[k] = v
	}
	objects := e.objects
	if objects == nil {
		objects = []json.RawMessage{}
	}
	raw, err := json.Marshal(objects)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize objects: %w", err)
	}
	doc["objects"] = raw

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize overlay: %w", err)
	}
	return out, nil
}

// Load replaces the editor content with doc
func (e *MemoryEditor) Load(doc json.RawMessage) error {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty document", ErrOverlayLoadFailed)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return fmt.Errorf("%w: %w", ErrOverlayLoadFailed, err)
	}
	var objects []json.RawMessage
	if raw, ok := top["objects"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &objects); err != nil {
			return fmt.Errorf("%w: objects: %w", ErrOverlayLoadFailed, err)
		}
	}
	delete(top, "objects")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = append(json.RawMessage(nil), doc...)
	e.dirty = false
	e.extra = top
	e.objects = objects
	return nil
}

// Clear empties the editor
func (e *MemoryEditor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// SetViewport records the size of the canvas the editor is drawn over
func (e *MemoryEditor) SetViewport(width, height, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height, e.zoom = width, height, zoom
}

// Viewport returns the last size set with SetViewport
func (e *MemoryEditor) Viewport() (width, height, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height, e.zoom
}

// Add appends objects to the document
func (e *MemoryEditor) Add(objs ...Object) error {
	raws := make([]json.RawMessage, 0, len(objs))
	for _, o := range objs {
		raw, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to encode %s object: %w", o.Type, err)
		}
		raws = append(raws, raw)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.objects = append(e.objects, raws...)
	e.dirty = true
	return nil
}

// Objects decodes the objects currently held by the editor
func (e *MemoryEditor) Objects() ([]Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return decodeObjects(e.objects)
}

// Len returns the number of objects
func (e *MemoryEditor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.objects)
}

// AddRecognizedText places each word as an editable text object over a
// white box that hides the original pixels.
func (e *MemoryEditor) AddRecognizedText(words []ocr.Word) error {
	objs := make([]Object, 0, 2*len(words))
	for _, w := range words {
		h := w.Box.Height()
		objs = append(objs,
			Object{
				Type:   "rect",
				Left:   w.Box.X0,
				Top:    w.Box.Y0 - h*0.1,
				Width:  w.Box.Width(),
				Height: h * 1.2,
				Fill:   String("white"),
			},
			Object{
				Type:       "i-text",
				Left:       w.Box.X0,
				Top:        w.Box.Y0,
				Text:       w.Text,
				FontSize:   h * 0.8,
				FontFamily: "Arial",
				Fill:       String("black"),
				FontWeight: fontWeight(w.Bold),
				FontStyle:  fontStyle(w.Italic),
			},
		)
	}
	return e.Add(objs...)
}

func fontWeight(bold bool) json.RawMessage {
	if bold {
		return json.RawMessage(`"bold"`)
	}
	return json.RawMessage(`"normal"`)
}

func fontStyle(italic bool) string {
	if italic {
		return "italic"
	}
	return "normal"
}

func decodeObjects(raws []json.RawMessage) ([]Object, error) {
	objs := make([]Object, 0, len(raws))
	for i, raw := range raws {
		var o Object
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		objs = append(objs, o)
	}
	return objs, nil
}
