package scene

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/colornames"

	"github.com/RyanBlaney/beatscope/pkg/audio/config"
	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// Bars draws one vertical stripe per band with a cap that falls back slowly
// after each peak.
type Bars struct {
	bands []string
	color color.RGBA

	levels []float64
	caps   []float64

	capFall  float64 // fraction of full height per second
	padding  int
	minGap   int
	capPx    int
	onset    float64
	flashCol color.RGBA
}

func NewBars(env Env, params Params) (Scene, error) {
	var defaults []string
	for _, b := range config.DefaultBands() {
		defaults = append(defaults, b.Name)
	}
	bands := params.Strings("bands", defaults)

	return &Bars{
		bands:    bands,
		color:    params.Color("color", colornames.Hotpink),
		flashCol: params.Color("flash", colornames.White),
		levels:   make([]float64, len(bands)),
		caps:     make([]float64, len(bands)),
		capFall:  params.Float("cap_fall", 0.6),
		padding:  params.Int("padding", 10),
		minGap:   params.Int("gap", 2),
		capPx:    2,
	}, nil
}

func (b *Bars) Enter() {
	for i := range b.caps {
		b.caps[i] = 0
		b.levels[i] = 0
	}
}

func (b *Bars) Update(dt, t float64, table *features.Table, idx int) error {
	for i, band := range b.bands {
		v := clamp01(valueAt(table, band, idx))
		b.levels[i] = v
		b.caps[i] = max(v, b.caps[i]-b.capFall*dt)
	}
	b.onset = clamp01(valueAt(table, features.SeriesOnset, idx))
	return nil
}

func (b *Bars) Draw(dst draw.Image) error {
	fill(dst, color.Black)

	bounds := dst.Bounds()
	n := len(b.bands)
	effW := bounds.Dx() - 2*b.padding
	effH := bounds.Dy() - b.padding
	if n == 0 || effW <= 0 || effH <= 0 {
		return nil
	}

	barW := max((effW-(n-1)*b.minGap)/n, 1)
	gap := b.minGap
	if n > 1 {
		gap = max((effW-barW*n)/(n-1), b.minGap)
	}
	startX := bounds.Min.X + b.padding
	bottom := bounds.Max.Y

	for i := range n {
		x := startX + i*(barW+gap)
		h := int(b.levels[i] * float64(effH))
		col := scale(b.color, 0.4+0.6*b.levels[i])
		fillRect(dst, image.Rect(x, bottom-h, x+barW, bottom), col)

		capY := bottom - int(b.caps[i]*float64(effH))
		fillRect(dst, image.Rect(x, capY-b.capPx, x+barW, capY), b.flashCol)
	}

	// onset strip along the top edge
	if w := int(b.onset * float64(bounds.Dx())); w > 0 {
		fillRect(dst, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+w, bounds.Min.Y+2), b.flashCol)
	}
	return nil
}
