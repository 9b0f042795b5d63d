// Package timeline maps playback time to the scene that should be on screen.
package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/beatscope/internal/scene"
	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// epsilon absorbs float noise when comparing adjacent entry bounds
const epsilon = 1e-9

// Entry is one half-open interval [Start, End) in seconds
type Entry struct {
	Start float64     `json:"start" yaml:"start"`
	End   float64     `json:"end" yaml:"end"`
	Name  string      `json:"scene" yaml:"scene"`
	Scene scene.Scene `json:"-" yaml:"-"`
}

// Contains reports whether t falls inside the entry
func (e Entry) Contains(t float64) bool {
	return e.Start <= t && t < e.End
}

func (e Entry) valid() bool {
	return !math.IsNaN(e.Start) && !math.IsNaN(e.End) && e.Start < e.End
}

// Resolution is the outcome of resolving one playback time
type Resolution struct {
	Scene      scene.Scene
	Entry      Entry
	EntryIndex int
	FrameIndex int
}

// Timeline is an ordered list of entries over a shared feature table.
// Resolve is read-only; Active tracks the current entry and is meant for a
// single render goroutine.
type Timeline struct {
	entries []Entry
	table   *features.Table
	current int
}

// New creates a timeline. The entries are copied in order; on overlap the
// earlier entry wins.
func New(entries []Entry, table *features.Table) *Timeline {
	return &Timeline{
		entries: append([]Entry(nil), entries...),
		table:   table,
		current: -1,
	}
}

// Entries returns a copy of the entries
func (tl *Timeline) Entries() []Entry {
	return append([]Entry(nil), tl.entries...)
}

// Entry returns entry i
func (tl *Timeline) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(tl.entries) {
		return Entry{}, false
	}
	return tl.entries[i], true
}

// Len returns the number of entries
func (tl *Timeline) Len() int {
	return len(tl.entries)
}

// Table returns the feature table scenes read from
func (tl *Timeline) Table() *features.Table {
	return tl.table
}

// FrameIndex returns the last frame whose time does not exceed t, clamped
// to the table's grid
func (tl *Timeline) FrameIndex(t float64) int {
	if tl.table == nil {
		return 0
	}
	return tl.table.IndexAt(t)
}

// Resolve finds the first entry containing t. It returns false when no
// entry matches, which callers treat as idle.
func (tl *Timeline) Resolve(t float64) (Resolution, bool) {
	for i, e := range tl.entries {
		if !e.valid() || !e.Contains(t) {
			continue
		}
		return Resolution{
			Scene:      e.Scene,
			Entry:      e,
			EntryIndex: i,
			FrameIndex: tl.FrameIndex(t),
		}, true
	}
	return Resolution{EntryIndex: -1, FrameIndex: tl.FrameIndex(t)}, false
}

// Active resolves t and runs enter/exit hooks when the active entry changes.
// An idle gap keeps the previous entry current without calling its exit
// hook, so returning to it does not re-enter. changed reports whether a
// transition happened on this call.
func (tl *Timeline) Active(t float64) (res Resolution, ok bool, changed bool) {
	res, ok = tl.Resolve(t)
	if !ok || res.EntryIndex == tl.current {
		return res, ok, false
	}

	if tl.current >= 0 {
		if ex, isExiter := tl.entries[tl.current].Scene.(scene.Exiter); isExiter {
			ex.Exit()
		}
	}
	if en, isEnterer := res.Scene.(scene.Enterer); isEnterer {
		en.Enter()
	}
	tl.current = res.EntryIndex
	return res, true, true
}

// Current returns the index of the entry that was last made active, or -1
func (tl *Timeline) Current() int {
	return tl.current
}

// Reset forgets the current entry, so the next Active call enters again
func (tl *Timeline) Reset() {
	tl.current = -1
}

// Validate reports overlapping, invalid and missing coverage over
// [0, duration]. None of the warnings prevent playback.
func (tl *Timeline) Validate(duration float64) []common.ConfigurationWarning {
	var warnings []common.ConfigurationWarning

	type span struct{ start, end float64 }
	var spans []span

	for i, e := range tl.entries {
		if !e.valid() {
			warnings = append(warnings, common.ConfigurationWarning{
				Code:    common.ErrCodeInvalidEntry,
				Index:   i,
				Start:   e.Start,
				End:     e.End,
				Message: fmt.Sprintf("entry %d (%s) has start %g not before end %g and never plays", i, e.Name, e.Start, e.End),
			})
			continue
		}
		if e.Scene == nil {
			warnings = append(warnings, common.ConfigurationWarning{
				Code:    common.ErrCodeInvalidEntry,
				Index:   i,
				Start:   e.Start,
				End:     e.End,
				Message: fmt.Sprintf("entry %d (%s) has no scene", i, e.Name),
			})
		}

		for j := range i {
			prev := tl.entries[j]
			if !prev.valid() {
				continue
			}
			lo, hi := max(prev.Start, e.Start), min(prev.End, e.End)
			if hi-lo > epsilon {
				warnings = append(warnings, common.ConfigurationWarning{
					Code:  common.ErrCodeOverlap,
					Index: i,
					Start: lo,
					End:   hi,
					Message: fmt.Sprintf("entry %d (%s) overlaps entry %d (%s) over [%.3f, %.3f); entry %d wins",
						i, e.Name, j, prev.Name, lo, hi, j),
				})
			}
		}

		if start, end := max(e.Start, 0), min(e.End, duration); end > start {
			spans = append(spans, span{start, end})
		}
	}

	if duration <= 0 {
		return warnings
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	if len(spans) == 0 {
		return append(warnings, common.ConfigurationWarning{
			Code:    common.ErrCodeUncovered,
			Index:   -1,
			Start:   0,
			End:     duration,
			Message: fmt.Sprintf("no entry covers the track [0, %.3f)", duration),
		})
	}

	if spans[0].start > epsilon {
		warnings = append(warnings, common.ConfigurationWarning{
			Code:    common.ErrCodeUncovered,
			Index:   -1,
			Start:   0,
			End:     spans[0].start,
			Message: fmt.Sprintf("track head [0, %.3f) is not covered", spans[0].start),
		})
	}

	reach := spans[0].end
	for _, s := range spans[1:] {
		if s.start-reach > epsilon {
			warnings = append(warnings, common.ConfigurationWarning{
				Code:    common.ErrCodeGap,
				Index:   -1,
				Start:   reach,
				End:     s.start,
				Message: fmt.Sprintf("gap [%.3f, %.3f) has no scene", reach, s.start),
			})
		}
		reach = max(reach, s.end)
	}

	if duration-reach > epsilon {
		warnings = append(warnings, common.ConfigurationWarning{
			Code:    common.ErrCodeUncovered,
			Index:   -1,
			Start:   reach,
			End:     duration,
			Message: fmt.Sprintf("track tail [%.3f, %.3f) is not covered", reach, duration),
		})
	}
	return warnings
}
