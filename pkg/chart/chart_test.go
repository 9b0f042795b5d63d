package chart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleChart = `{
  "song": {
    "bpm": 150,
    "speed": 2.5,
    "player1": "pico",
    "notes": [
      {"mustHitSection": false, "sectionNotes": [[1000, 0, 0], [500, 5, 250], [700, -1, "event"]]},
      {"mustHitSection": true,  "sectionNotes": [[2000, 1, 0], [2000, 6, 0], [1500, 2]]}
    ]
  }
}`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleChart), 0)
	require.NoError(t, err)

	assert.Equal(t, 150.0, c.BPM)
	assert.Equal(t, 2.5, c.ScrollSpeed)
	assert.Equal(t, "pico", c.Player1)
	assert.Equal(t, "dad", c.Player2)

	require.Len(t, c.Notes, 4)
	assert.Equal(t, Note{Time: 0.5, Lane: 1, Sustain: 0.25, Player: true}, c.Notes[0])
	assert.Equal(t, Note{Time: 1, Lane: 0, Player: false}, c.Notes[1])

	// mustHitSection swaps sides
	assert.True(t, c.Notes[2].Player)
	assert.Equal(t, 1, c.Notes[2].Lane)
	assert.False(t, c.Notes[3].Player)
	assert.Equal(t, 2, c.Notes[3].Lane)

	assert.Len(t, c.PlayerNotes, 2)
	assert.Len(t, c.OpponentNotes, 2)
	assert.InDelta(t, 4.0, c.Duration, 1e-9)
}

func TestParseDurations(t *testing.T) {
	c, err := Parse([]byte(sampleChart), 95.5)
	require.NoError(t, err)
	assert.Equal(t, 95.5, c.Duration)

	c, err = Parse([]byte(`{"song": {}}`), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, c.Duration)
	assert.Equal(t, DefaultBPM, c.BPM)
	assert.Equal(t, DefaultScrollSpeed, c.ScrollSpeed)
	assert.Empty(t, c.Notes)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"song": `},
		{"missing song", `{"notes": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), 0)
			assert.Error(t, err)
		})
	}
}

func TestQueries(t *testing.T) {
	c, err := Parse([]byte(sampleChart), 0)
	require.NoError(t, err)

	assert.Len(t, c.NotesInRange(0.5, 2.0, false), 4)
	assert.Len(t, c.NotesInRange(0.5, 2.0, true), 2)
	assert.Len(t, c.NotesInRange(0.6, 0.9, false), 0)
	assert.Nil(t, c.NotesInRange(3, 2, false))

	assert.InDelta(t, 2.0, c.Density(1.0, 2.0, false), 1e-9)
	assert.Equal(t, 0.0, c.Density(1.0, 0, false))

	assert.True(t, c.NoteAt(0.52, 1, DefaultThreshold, true))
	assert.False(t, c.NoteAt(0.56, 1, DefaultThreshold, true))
	assert.False(t, c.NoteAt(1.0, 0, DefaultThreshold, true))
	assert.True(t, c.NoteAt(1.0, 0, DefaultThreshold, false))

	assert.InDelta(t, 0.4, c.BeatDuration(), 1e-12)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleChart), 0644))

	c, err := Load(path, 0)
	require.NoError(t, err)
	assert.Len(t, c.Notes, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"), 0)
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	c := Empty(0, 0)
	assert.Equal(t, DefaultBPM, c.BPM)
	assert.Equal(t, DefaultDuration, c.Duration)
	assert.Empty(t, c.NotesInRange(0, 100, false))
}
