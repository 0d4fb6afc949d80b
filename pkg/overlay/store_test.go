package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Set(3, Snapshot{Data: json.RawMessage(`{"objects":[]}`), Scale: 1.5})
	s.Set(1, Snapshot{Data: json.RawMessage(`{"objects":[{"type":"rect"}]}`), Scale: 1.5})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 3}, s.Pages())

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1.5, got.Scale)
	assert.False(t, got.IsEmpty())

	// mutating a returned snapshot must not leak into the store
	got.Data[0] = 'x'
	again, _ := s.Get(1)
	assert.Equal(t, byte('{'), again.Data[0])

	clone := s.Clone()
	s.Delete(3)
	assert.Len(t, clone, 2)
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSnapshotIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"no data", "", true},
		{"no objects key", `{"version":"5.3.0"}`, true},
		{"empty objects", `{"objects":[]}`, true},
		{"one object", `{"objects":[{"type":"rect"}]}`, false},
		{"malformed", `{"objects":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{Data: json.RawMessage(tt.data)}
			assert.Equal(t, tt.want, snap.IsEmpty())
		})
	}
}

func TestSnapshotNativeScale(t *testing.T) {
	assert.Equal(t, 1.0, Snapshot{}.NativeScale())
	assert.Equal(t, 0.5, Snapshot{Scale: 2}.NativeScale())
}
