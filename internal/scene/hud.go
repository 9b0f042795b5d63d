package scene

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// HUD prints track information with meters for the most useful series
type HUD struct {
	color  color.RGBA
	meters []string

	title    string
	tempo    float64
	t        float64
	duration float64
	idx      int
	frames   int
	values   []float64
}

func NewHUD(env Env, params Params) (Scene, error) {
	meters := params.Strings("meters", []string{
		features.SeriesRMS,
		features.SeriesOnset,
		features.SeriesNovelty,
		features.SeriesHarmonicRMS,
		features.SeriesPercussiveRMS,
	})
	return &HUD{
		color:  params.Color("color", colornames.Lime),
		meters: meters,
		values: make([]float64, len(meters)),
	}, nil
}

func (h *HUD) Update(dt, t float64, table *features.Table, idx int) error {
	h.t = t
	h.idx = idx
	if table == nil {
		return nil
	}

	h.tempo = table.Tempo
	h.duration = table.Duration
	h.frames = table.Len()
	h.title = trackTitle(table)
	for i, name := range h.meters {
		h.values[i] = clamp01(valueAt(table, name, idx))
	}
	return nil
}

func trackTitle(table *features.Table) string {
	if md := table.Metadata; md != nil && md.Title != "" {
		if md.Artist != "" {
			return md.Artist + " - " + md.Title
		}
		return md.Title
	}
	name := table.Path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	m := int(sec) / 60
	return fmt.Sprintf("%02d:%04.1f", m, sec-float64(m*60))
}

func (h *HUD) Draw(dst draw.Image) error {
	fill(dst, color.Black)

	b := dst.Bounds()
	x := b.Min.X + 8
	y := b.Min.Y + 16
	line := 16

	drawText(dst, x, y, strings.ToUpper(h.title), h.color)
	y += line
	drawText(dst, x, y, fmt.Sprintf("TEMPO %6.1f BPM", h.tempo), h.color)
	y += line
	drawText(dst, x, y, fmt.Sprintf("TIME  %s / %s", clock(h.t), clock(h.duration)), h.color)
	y += line
	drawText(dst, x, y, fmt.Sprintf("FRAME %d / %d", h.idx, h.frames), h.color)
	y += line

	labelW := 16 * 7
	barW := b.Dx() - labelW - 24
	for i, name := range h.meters {
		y += line
		drawText(dst, x, y, strings.ToUpper(name), h.color)
		if barW <= 0 {
			continue
		}
		bx := x + labelW
		fillRect(dst, image.Rect(bx, y-9, bx+barW, y), scale(h.color, 0.2))
		fillRect(dst, image.Rect(bx, y-9, bx+int(h.values[i]*float64(barW)), y), h.color)
	}
	return nil
}
