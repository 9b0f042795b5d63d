package scene

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
	"github.com/RyanBlaney/beatscope/pkg/chart"
)

var laneColors = [4]color.RGBA{
	{R: 194, G: 75, B: 153, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 18, G: 250, B: 5, A: 255},
	{R: 249, G: 57, B: 63, A: 255},
}

type noteKey struct {
	time float64
	lane int
}

// Notes scrolls rhythm chart notes up toward a row of receptors. Without a
// chart it falls back to an empty chart at the extracted tempo so the beat
// grid still moves.
type Notes struct {
	chart      *chart.Chart
	playerOnly bool
	offset     float64 // audio latency compensation, seconds
	pxPerSec   float64 // at 720 lines
	hitWindow  float64
	background color.RGBA

	visual    float64
	active    []chart.Note
	hit       map[noteKey]bool
	flashes   [4]float64
	beatPhase float64
	onset     float64
}

func NewNotes(env Env, params Params) (Scene, error) {
	return &Notes{
		chart:      env.Chart,
		playerOnly: params.Bool("player_only", true),
		offset:     params.Float("offset", 0.08),
		pxPerSec:   params.Float("scroll", 900),
		hitWindow:  params.Float("hit_window", 0.1),
		background: params.Color("background", color.RGBA{R: 20, G: 20, B: 35, A: 255}),
		hit:        make(map[noteKey]bool),
	}, nil
}

func (n *Notes) Enter() {
	clear(n.hit)
	n.flashes = [4]float64{}
}

func (n *Notes) Update(dt, t float64, table *features.Table, idx int) error {
	if n.chart == nil {
		tempo, duration := 0.0, 0.0
		if table != nil {
			tempo, duration = table.Tempo, table.Duration
		}
		n.chart = chart.Empty(tempo, duration)
	}

	n.visual = t - n.offset
	beat := n.chart.BeatDuration()
	n.beatPhase = math.Mod(n.visual, beat) / beat
	if n.beatPhase < 0 {
		n.beatPhase += 1
	}

	n.active = n.chart.NotesInRange(n.visual-0.5, n.visual+2.0, n.playerOnly)
	for _, note := range n.active {
		key := noteKey{note.Time, note.Lane}
		if n.hit[key] || math.Abs(note.Time-n.visual) > n.hitWindow {
			continue
		}
		n.hit[key] = true
		if note.Lane >= 0 && note.Lane < len(n.flashes) {
			n.flashes[note.Lane] = 1
		}
	}
	for i := range n.flashes {
		n.flashes[i] = max(0, n.flashes[i]-4*dt)
	}
	n.onset = clamp01(valueAt(table, features.SeriesOnset, idx))
	return nil
}

func (n *Notes) Draw(dst draw.Image) error {
	fill(dst, n.background)
	if n.chart == nil {
		return nil
	}

	b := dst.Bounds()
	h := float64(b.Dy())
	k := h / 720
	pxPerSec := n.pxPerSec * k
	spacing := int(100 * k)
	noteW := max(4, int(80*k))
	noteH := max(2, int(20*k))
	receptorY := float64(b.Min.Y) + 120*k
	startX := b.Min.X + (b.Dx()-3*spacing)/2

	// beat grid
	beat := n.chart.BeatDuration()
	for i := -5; i < 20; i++ {
		y := receptorY + (float64(i)-n.beatPhase)*beat*pxPerSec
		if y < float64(b.Min.Y) || y > float64(b.Max.Y) {
			continue
		}
		col := color.RGBA{R: 40, G: 40, B: 55, A: 255}
		if i%4 == 0 {
			col = color.RGBA{R: 60, G: 60, B: 80, A: 255}
		}
		fillRect(dst, image.Rect(b.Min.X, int(y), b.Max.X, int(y)+1), col)
	}

	for lane := range 4 {
		x := startX + lane*spacing
		fillRect(dst, image.Rect(x-noteW/2, b.Min.Y, x+noteW/2, b.Max.Y), scale(laneColors[lane], 0.15))
	}

	for _, note := range n.active {
		if note.Lane < 0 || note.Lane >= 4 {
			continue
		}
		x := startX + note.Lane*spacing
		until := note.Time - n.visual
		y := receptorY + until*pxPerSec
		if y < float64(b.Min.Y)-50 || y > float64(b.Max.Y)+50 {
			continue
		}

		col := laneColors[note.Lane]
		switch {
		case n.hit[noteKey{note.Time, note.Lane}]:
			col = scale(col, 0.3)
		case math.Abs(until) < 0.1:
			col = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		if note.Sustain > 0 {
			tail := int(note.Sustain * pxPerSec)
			fillRect(dst, image.Rect(x-noteW/4, int(y), x+noteW/4, int(y)+tail), scale(col, 0.6))
		}
		fillRect(dst, image.Rect(x-noteW/2, int(y)-noteH/2, x+noteW/2, int(y)+noteH/2), col)
	}

	// receptors pulse with the onset envelope and flash on hits
	for lane := range 4 {
		x := float64(startX + lane*spacing)
		r := float64(noteW) / 2 * (0.9 + 0.1*n.onset)
		strokeCircle(dst, x, receptorY, r, max(1, 3*k), laneColors[lane])
		if f := n.flashes[lane]; f > 0 {
			fillCircle(dst, x, receptorY, r*(1+0.3*f), scale(laneColors[lane], f))
		}
	}
	return nil
}
