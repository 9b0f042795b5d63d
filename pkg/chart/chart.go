// Package chart loads Psych Engine rhythm charts so scenes can react to
// authored note timings alongside the extracted features.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

const (
	DefaultBPM         = 120.0
	DefaultScrollSpeed = 3.0
	DefaultDuration    = 60.0
	DefaultThreshold   = 0.05

	// lanes at or above this index belong to the player side
	playerLaneOffset = 4
	// seconds added after the last note when no audio duration is known
	tailPadding = 2.0
)

// Note is one chart note with times in seconds
type Note struct {
	Time    float64 `json:"time"`
	Lane    int     `json:"lane"`
	Sustain float64 `json:"sustain"`
	Player  bool    `json:"player"`
}

// End returns the time the note's sustain finishes
func (n Note) End() float64 {
	return n.Time + n.Sustain
}

// Chart is a parsed chart. Note slices are sorted by time.
type Chart struct {
	BPM           float64 `json:"bpm"`
	ScrollSpeed   float64 `json:"scroll_speed"`
	Duration      float64 `json:"duration"`
	Player1       string  `json:"player1"`
	Player2       string  `json:"player2"`
	Notes         []Note  `json:"notes"`
	PlayerNotes   []Note  `json:"player_notes"`
	OpponentNotes []Note  `json:"opponent_notes"`
}

type rawChart struct {
	Song *rawSong `json:"song"`
}

type rawSong struct {
	BPM      *float64     `json:"bpm"`
	Speed    *float64     `json:"speed"`
	Player1  string       `json:"player1"`
	Player2  string       `json:"player2"`
	Sections []rawSection `json:"notes"`
}

type rawSection struct {
	SectionNotes   [][]any `json:"sectionNotes"`
	MustHitSection bool    `json:"mustHitSection"`
}

// Load reads a chart file. audioDuration <= 0 means the audio length is
// unknown and the duration is derived from the notes.
func Load(path string, audioDuration float64) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart file %s: %w", path, err)
	}

	c, err := Parse(data, audioDuration)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", path, err)
	}

	logging.WithFields(logging.Fields{
		"component": "chart_loader",
		"path":      path,
	}).Info("Loaded chart", logging.Fields{
		"bpm":            c.BPM,
		"speed":          c.ScrollSpeed,
		"notes":          len(c.Notes),
		"player_notes":   len(c.PlayerNotes),
		"opponent_notes": len(c.OpponentNotes),
	})
	return c, nil
}

// Parse decodes chart JSON
func Parse(data []byte, audioDuration float64) (*Chart, error) {
	var raw rawChart
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid chart JSON: %w", err)
	}
	if raw.Song == nil {
		return nil, errors.New("chart missing 'song' data")
	}
	song := raw.Song

	c := Empty(DefaultBPM, audioDuration)
	if song.BPM != nil && *song.BPM > 0 {
		c.BPM = *song.BPM
	}
	if song.Speed != nil {
		c.ScrollSpeed = *song.Speed
	}
	if song.Player1 != "" {
		c.Player1 = song.Player1
	}
	if song.Player2 != "" {
		c.Player2 = song.Player2
	}

	for _, section := range song.Sections {
		for _, raw := range section.SectionNotes {
			note, ok := parseNote(raw, section.MustHitSection)
			if ok {
				c.Notes = append(c.Notes, note)
			}
		}
	}
	sort.SliceStable(c.Notes, func(i, j int) bool {
		return c.Notes[i].Time < c.Notes[j].Time
	})
	for _, n := range c.Notes {
		if n.Player {
			c.PlayerNotes = append(c.PlayerNotes, n)
		} else {
			c.OpponentNotes = append(c.OpponentNotes, n)
		}
	}

	if audioDuration <= 0 {
		c.Duration = DefaultDuration
		if len(c.Notes) > 0 {
			last := 0.0
			for _, n := range c.Notes {
				last = max(last, n.End())
			}
			c.Duration = last + tailPadding
		}
	}
	return c, nil
}

// parseNote reads a [ms, lane, sustainMs] triple. Events use negative or
// non-numeric lanes and are skipped.
func parseNote(raw []any, mustHit bool) (Note, bool) {
	if len(raw) < 3 {
		return Note{}, false
	}
	ms, ok1 := raw[0].(float64)
	lane, ok2 := raw[1].(float64)
	sustain, ok3 := raw[2].(float64)
	if !ok1 || !ok2 || !ok3 || lane < 0 {
		return Note{}, false
	}

	n := Note{
		Time:    ms / 1000,
		Lane:    int(lane),
		Sustain: sustain / 1000,
	}
	if n.Lane >= playerLaneOffset {
		n.Lane -= playerLaneOffset
		n.Player = true
	}
	if mustHit {
		n.Player = !n.Player
	}
	return n, true
}

// Empty returns a chart with no notes, for scenes that run without one
func Empty(bpm, duration float64) *Chart {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Chart{
		BPM:         bpm,
		ScrollSpeed: DefaultScrollSpeed,
		Duration:    duration,
		Player1:     "bf",
		Player2:     "dad",
	}
}

func (c *Chart) notes(playerOnly bool) []Note {
	if playerOnly {
		return c.PlayerNotes
	}
	return c.Notes
}

// NotesInRange returns notes with start <= time <= end
func (c *Chart) NotesInRange(start, end float64, playerOnly bool) []Note {
	notes := c.notes(playerOnly)
	lo := sort.Search(len(notes), func(i int) bool { return notes[i].Time >= start })
	hi := sort.Search(len(notes), func(i int) bool { return notes[i].Time > end })
	if lo >= hi {
		return nil
	}
	return notes[lo:hi]
}

// Density returns notes per second in a window centered on t
func (c *Chart) Density(t, window float64, playerOnly bool) float64 {
	if window <= 0 {
		return 0
	}
	return float64(len(c.NotesInRange(t-window/2, t+window/2, playerOnly))) / window
}

// NoteAt reports whether a note sits in lane within threshold seconds of t
func (c *Chart) NoteAt(t float64, lane int, threshold float64, playerOnly bool) bool {
	for _, n := range c.NotesInRange(t-threshold, t+threshold, playerOnly) {
		if n.Lane == lane && abs(n.Time-t) < threshold {
			return true
		}
	}
	return false
}

// BeatDuration is the length of one beat in seconds
func (c *Chart) BeatDuration() float64 {
	return 60 / c.BPM
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
