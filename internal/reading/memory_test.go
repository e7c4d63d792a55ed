package reading

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreQueries(t *testing.T) {
	now := time.Unix(1700001000, 0)
	m := NewMemoryStore()
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.Add(
		Reading{CameraID: "a", Timestamp: 1700000900, FireScore: 0.9, Label: LabelFire},
		Reading{CameraID: "a", Timestamp: 1700000100, FireScore: 0.1, Label: LabelNoFire},
		Reading{CameraID: "a", Timestamp: 1700000500, FireScore: 0.4, Label: LabelNoFire},
		Reading{CameraID: "b", Timestamp: 1700000999, FireScore: 0.0, Label: LabelNoFire},
	))

	latest, err := m.Latest(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000900), latest.Timestamp)

	none, err := m.Latest(t.Context(), "zzz")
	require.NoError(t, err)
	assert.Nil(t, none)

	since, err := m.Since(t.Context(), "a", 10*time.Minute, Chronological)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(1700000500), since[0].Timestamp)

	recent, err := m.Recent(t.Context(), "a", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(1700000900), recent[0].Timestamp)
	assert.Equal(t, int64(1700000500), recent[1].Timestamp)

	assert.Equal(t, []string{"a", "b"}, m.Cameras())
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	m := NewMemoryStore()
	err := m.Add(Reading{CameraID: "a", Timestamp: 1, FireScore: 2, Label: LabelFire})
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Empty(t, m.Cameras())
}

func TestMemoryStoreFailCamera(t *testing.T) {
	m := NewMemoryStore()
	m.FailCamera("a", ErrStoreUnavailable)
	_, err := m.Latest(t.Context(), "a")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	m.FailCamera("a", nil)
	_, err = m.Latest(t.Context(), "a")
	assert.NoError(t, err)
}

func TestMemoryStoreLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.json")
	data := `[{"cam_name":"Axis-AlabamaHills1","timestamp":1700000000,"fire_score":0.83,"label":"fire"},
	          {"cam_name":"Axis-AlabamaHills1","timestamp":1699999000,"fire_score":0.02,"label":"no_fire","no_fire_score":0.98}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	m := NewMemoryStore()
	require.NoError(t, m.LoadFile(path))
	recent, err := m.Recent(t.Context(), "Axis-AlabamaHills1", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, LabelNoFire, recent[1].Label)
}

func TestReadingHelpers(t *testing.T) {
	now := time.Unix(1700000600, 0)
	r := Reading{CameraID: "c", Timestamp: 1700000000, FireScore: 0.836, Label: LabelFire}
	assert.True(t, r.Within(now, 600*time.Second), "boundary is inclusive")
	assert.False(t, r.Within(now.Add(time.Second), 600*time.Second))
	assert.Equal(t, 84, r.ConfidencePercent())
	assert.True(t, now.Add(-600*time.Second).Equal(r.Time()))

	l, ok := ParseLabel("No_Fire")
	assert.True(t, ok)
	assert.Equal(t, LabelNoFire, l)
	_, ok = ParseLabel("smoke")
	assert.False(t, ok)
}
