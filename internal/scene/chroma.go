package scene

import (
	"image/color"
	"image/draw"
	"math"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// ChromaWheel draws twelve wedges, one per pitch class starting at C, whose
// length follows the chroma vector. The wheel turns with the tempo.
type ChromaWheel struct {
	saturation float64
	spin       float64 // turns per beat

	chroma   [12]float64
	angle    float64
	centroid float64
}

func NewChromaWheel(env Env, params Params) (Scene, error) {
	return &ChromaWheel{
		saturation: clamp01(params.Float("saturation", 0.8)),
		spin:       params.Float("spin", 0.01),
	}, nil
}

func (c *ChromaWheel) Update(dt, t float64, table *features.Table, idx int) error {
	v := vectorAt(table, "chroma", idx)
	for k := range c.chroma {
		target := 0.0
		if k < len(v) {
			target = clamp01(v[k])
		}
		c.chroma[k] = approach(c.chroma[k], target, 20, dt)
	}

	tempo := 120.0
	if table != nil && table.Tempo > 0 {
		tempo = table.Tempo
	}
	c.angle += 2 * math.Pi * c.spin * tempo / 60 * dt
	c.centroid = clamp01(valueAt(table, features.SeriesCentroid, idx))
	return nil
}

func (c *ChromaWheel) Draw(dst draw.Image) error {
	fill(dst, color.Black)

	b := dst.Bounds()
	short := float64(min(b.Dx(), b.Dy()))
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	inner := 0.12 * short
	outer := 0.48 * short

	step := 2 * math.Pi / 12
	for k, v := range c.chroma {
		if v <= 0 {
			continue
		}
		a0 := c.angle + float64(k)*step - math.Pi/2
		r1 := inner + v*(outer-inner)
		col := hsv(float64(k)*30, c.saturation, 0.4+0.6*v)
		fillPaths(dst, col, wedge(cx, cy, inner, r1, a0+0.04, a0+step-0.04))
	}
	fillCircle(dst, cx, cy, inner*(0.5+0.5*c.centroid), hsv(200, 0.3, 0.9))
	return nil
}
