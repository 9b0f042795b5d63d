package scene

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"golang.org/x/image/colornames"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// BeatFlash flashes the whole frame on tracked beats and counts beats in
// groups of four.
type BeatFlash struct {
	color colorPair
	decay float64
	meter int

	flash float64
	beat  int
}

type colorPair struct {
	on, off color.RGBA
}

func NewBeatFlash(env Env, params Params) (Scene, error) {
	return &BeatFlash{
		color: colorPair{
			on:  params.Color("color", colornames.Gold),
			off: params.Color("background", colornames.Midnightblue),
		},
		decay: params.Float("decay", 0.15),
		meter: max(1, params.Int("meter", 4)),
	}, nil
}

func (b *BeatFlash) Update(dt, t float64, table *features.Table, idx int) error {
	b.flash = 0
	b.beat = 0
	if table == nil {
		return nil
	}

	if last, ok := table.LastBeat(t); ok && b.decay > 0 {
		b.flash = math.Exp(-(t - last) / b.decay)
	}
	b.beat = sort.Search(len(table.BeatTimes), func(i int) bool {
		return table.BeatTimes[i] > t
	})
	return nil
}

func (b *BeatFlash) Draw(dst draw.Image) error {
	fill(dst, b.color.off)
	if b.flash > 0 {
		fillRect(dst, dst.Bounds(), scale(b.color.on, 0.8*b.flash))
	}

	bounds := dst.Bounds()
	size := max(2, bounds.Dy()/12)
	gap := size / 2
	total := b.meter*size + (b.meter-1)*gap
	x0 := bounds.Min.X + (bounds.Dx()-total)/2
	y0 := bounds.Max.Y - 2*size

	current := -1
	if b.beat > 0 {
		current = (b.beat - 1) % b.meter
	}
	for i := range b.meter {
		col := scale(b.color.on, 0.3)
		if i == current {
			col = b.color.on
		}
		x := x0 + i*(size+gap)
		fillRect(dst, image.Rect(x, y0, x+size, y0+size), col)
	}
	return nil
}
