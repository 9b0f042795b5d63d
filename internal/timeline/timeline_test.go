package timeline

import (
	"image/draw"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/RyanBlaney/beatscope/pkg/audio/common"
	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// stubScene records hook calls
type stubScene struct {
	name   string
	enters int
	exits  int
}

func (s *stubScene) Update(dt, t float64, table *features.Table, idx int) error { return nil }
func (s *stubScene) Draw(dst draw.Image) error                                  { return nil }
func (s *stubScene) Enter()                                                     { s.enters++ }
func (s *stubScene) Exit()                                                      { s.exits++ }

// gridTable has n frames every hop seconds
func gridTable(n int, hop float64) *features.Table {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * hop
	}
	return &features.Table{Times: times, Duration: float64(n) * hop}
}

type TimelineTestSuite struct {
	suite.Suite
	a, b, c *stubScene
	tl      *Timeline
}

func (s *TimelineTestSuite) SetupTest() {
	s.a = &stubScene{name: "A"}
	s.b = &stubScene{name: "B"}
	s.c = &stubScene{name: "C"}
	s.tl = New([]Entry{
		{Start: 0, End: 10, Name: "A", Scene: s.a},
		{Start: 10, End: 20, Name: "B", Scene: s.b},
		{Start: 20, End: 30, Name: "C", Scene: s.c},
	}, gridTable(1300, 512.0/22050))
}

func (s *TimelineTestSuite) TestResolveBoundaries() {
	type test struct {
		t     float64
		want  *stubScene
		entry int
	}
	tests := []test{
		{0, s.a, 0},
		{9.999, s.a, 0},
		{10.0, s.b, 1},
		{19.5, s.b, 1},
		{20.0, s.c, 2},
		{29.999, s.c, 2},
	}
	for _, tt := range tests {
		res, ok := s.tl.Resolve(tt.t)
		s.Require().True(ok, "t=%g", tt.t)
		s.Same(tt.want, res.Scene, "t=%g", tt.t)
		s.Equal(tt.entry, res.EntryIndex)
	}

	for _, t := range []float64{-0.5, 30.0, 35.0} {
		res, ok := s.tl.Resolve(t)
		s.False(ok, "t=%g should be idle", t)
		s.Nil(res.Scene)
		s.Equal(-1, res.EntryIndex)
	}
}

func (s *TimelineTestSuite) TestFrameIndexProperty() {
	table := s.tl.Table()
	n := table.Len()
	rng := rand.New(rand.NewSource(7))

	for range 500 {
		t := rng.Float64()*40 - 5
		idx := s.tl.FrameIndex(t)
		s.GreaterOrEqual(idx, 0)
		s.LessOrEqual(idx, n-1)
		if t >= 0 {
			s.LessOrEqual(table.Times[idx], t)
			if idx < n-1 {
				s.Greater(table.Times[idx+1], t)
			}
		} else {
			s.Equal(0, idx)
		}
	}

	res, ok := s.tl.Resolve(10.0)
	s.Require().True(ok)
	s.Equal(table.IndexAt(10.0), res.FrameIndex)
}

func (s *TimelineTestSuite) TestHooksOnTransitions() {
	_, ok, changed := s.tl.Active(1)
	s.True(ok)
	s.True(changed)
	s.Equal(1, s.a.enters)

	_, _, changed = s.tl.Active(2)
	s.False(changed)
	s.Equal(1, s.a.enters)

	_, _, changed = s.tl.Active(12)
	s.True(changed)
	s.Equal(1, s.a.exits)
	s.Equal(1, s.b.enters)

	// idle holds the current entry without exiting it
	_, ok, changed = s.tl.Active(40)
	s.False(ok)
	s.False(changed)
	s.Equal(0, s.b.exits)
	s.Equal(1, s.tl.Current())

	s.tl.Reset()
	_, _, changed = s.tl.Active(12)
	s.True(changed)
	s.Equal(2, s.b.enters)
}

func (s *TimelineTestSuite) TestValidateCleanTimeline() {
	s.Empty(s.tl.Validate(30))
}

func TestTimelineTestSuite(t *testing.T) {
	suite.Run(t, new(TimelineTestSuite))
}

func TestOverlapFirstWins(t *testing.T) {
	a, b := &stubScene{name: "A"}, &stubScene{name: "B"}
	tl := New([]Entry{
		{Start: 0, End: 12, Name: "A", Scene: a},
		{Start: 10, End: 20, Name: "B", Scene: b},
	}, gridTable(10, 1))

	res, ok := tl.Resolve(11)
	require.True(t, ok)
	assert.Same(t, a, res.Scene)

	warnings := tl.Validate(20)
	require.Len(t, warnings, 1)
	assert.Equal(t, common.ErrCodeOverlap, warnings[0].Code)
	assert.Equal(t, 1, warnings[0].Index)
	assert.Equal(t, 10.0, warnings[0].Start)
	assert.Equal(t, 12.0, warnings[0].End)
}

func TestValidateCoverage(t *testing.T) {
	sc := &stubScene{}
	type test struct {
		name     string
		entries  []Entry
		duration float64
		codes    []string
	}
	tests := []test{
		{
			name:     "empty",
			duration: 10,
			codes:    []string{common.ErrCodeUncovered},
		},
		{
			name: "head and tail",
			entries: []Entry{
				{Start: 2, End: 8, Name: "x", Scene: sc},
			},
			duration: 10,
			codes:    []string{common.ErrCodeUncovered, common.ErrCodeUncovered},
		},
		{
			name: "gap",
			entries: []Entry{
				{Start: 0, End: 4, Name: "x", Scene: sc},
				{Start: 6, End: 10, Name: "y", Scene: sc},
			},
			duration: 10,
			codes:    []string{common.ErrCodeGap},
		},
		{
			name: "out of order is still covered",
			entries: []Entry{
				{Start: 5, End: 10, Name: "y", Scene: sc},
				{Start: 0, End: 5, Name: "x", Scene: sc},
			},
			duration: 10,
		},
		{
			name: "inverted entry",
			entries: []Entry{
				{Start: 0, End: 10, Name: "x", Scene: sc},
				{Start: 6, End: 4, Name: "bad", Scene: sc},
			},
			duration: 10,
			codes:    []string{common.ErrCodeInvalidEntry},
		},
		{
			name: "missing scene",
			entries: []Entry{
				{Start: 0, End: 10, Name: "ghost"},
			},
			duration: 10,
			codes:    []string{common.ErrCodeInvalidEntry},
		},
		{
			name: "runs past the track",
			entries: []Entry{
				{Start: 0, End: 60, Name: "x", Scene: sc},
			},
			duration: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []string
			for _, w := range New(tt.entries, nil).Validate(tt.duration) {
				codes = append(codes, w.Code)
				assert.NotEmpty(t, w.Message)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestInvalidEntryNeverResolves(t *testing.T) {
	sc := &stubScene{}
	tl := New([]Entry{{Start: 5, End: 5, Name: "zero", Scene: sc}}, nil)
	_, ok := tl.Resolve(5)
	assert.False(t, ok)
	assert.Equal(t, 0, tl.FrameIndex(5))
}

func TestEntriesAreCopied(t *testing.T) {
	entries := []Entry{{Start: 0, End: 1, Name: "a"}}
	tl := New(entries, nil)
	entries[0].Name = "changed"
	assert.Equal(t, "a", tl.Entries()[0].Name)
	assert.Equal(t, 1, tl.Len())
}
