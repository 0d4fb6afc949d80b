package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func deletionSet(pages ...int) *DeletionSet {
	d := NewDeletionSet()
	for _, p := range pages {
		d.Add(p)
	}
	return d
}

func TestNextVisible(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		count    int
		deleted  *DeletionSet
		want     int
		wantMove bool
	}{
		{"simple", 1, 5, deletionSet(), 2, true},
		{"skips deleted", 1, 5, deletionSet(2, 3), 4, true},
		{"last page", 5, 5, deletionSet(), 0, false},
		{"only deleted after", 3, 5, deletionSet(4, 5), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextVisible(tt.current, tt.count, tt.deleted)
			assert.Equal(t, tt.wantMove, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreviousVisible(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		count    int
		deleted  *DeletionSet
		want     int
		wantMove bool
	}{
		{"simple", 3, 5, deletionSet(), 2, true},
		{"skips deleted", 5, 5, deletionSet(3, 4), 2, true},
		{"first page", 1, 5, deletionSet(), 0, false},
		{"only deleted before", 3, 5, deletionSet(1, 2), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PreviousVisible(tt.current, tt.count, tt.deleted)
			assert.Equal(t, tt.wantMove, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayPageNumber(t *testing.T) {
	d := deletionSet(1, 3, 6)
	assert.Equal(t, 1, DisplayPageNumber(2, d))
	assert.Equal(t, 2, DisplayPageNumber(4, d))
	assert.Equal(t, 3, DisplayPageNumber(5, d))
	assert.Equal(t, 4, DisplayPageNumber(7, d))
	assert.Equal(t, 4, VisibleCount(7, d))
	assert.Equal(t, 7, VisibleCount(7, nil))
}

func TestDeletionSet(t *testing.T) {
	d := NewDeletionSet()
	assert.True(t, d.Add(4))
	assert.True(t, d.Add(2))
	assert.False(t, d.Add(4))

	assert.Equal(t, 2, d.Len())
	assert.True(t, d.Contains(2))
	assert.False(t, d.Contains(3))
	assert.Equal(t, []int{2, 4}, d.Pages())
	assert.Equal(t, 1, d.CountBefore(4))
	assert.Equal(t, 2, d.CountBefore(5))

	var empty *DeletionSet
	assert.False(t, empty.Contains(1))
	assert.Zero(t, empty.Len())
}

func TestViewTransform(t *testing.T) {
	v := NewViewTransform(0.2, 0.4)
	assert.Equal(t, 1.0, v.Zoom())

	v.ZoomIn()
	v.ZoomIn()
	assert.Equal(t, 1.4, v.Zoom())
	v.ZoomOut()
	assert.Equal(t, 1.2, v.Zoom())

	for i := 0; i < 10; i++ {
		v.ZoomOut()
	}
	assert.Equal(t, 0.4, v.Zoom())

	assert.Equal(t, 0.4, v.SetZoom(-3))
	assert.Equal(t, 7.5, v.SetZoom(7.5), "no ceiling")

	assert.Equal(t, 90, v.Rotate())
	assert.Equal(t, 180, v.Rotate())
	assert.Equal(t, 270, v.Rotate())
	assert.Equal(t, 0, v.Rotate())

	v.Rotate()
	vp := v.Viewport(1.5)
	assert.InDelta(t, 11.25, vp.Scale, 1e-9)
	assert.Equal(t, 90, vp.Rotation)

	v.Reset()
	assert.Equal(t, 1.0, v.Zoom())
	assert.Equal(t, 0, v.Rotation())
}
