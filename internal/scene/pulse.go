package scene

import (
	"image/color"
	"image/draw"

	"golang.org/x/image/colornames"

	"github.com/RyanBlaney/beatscope/pkg/audio/features"
)

// Pulse is a center circle sized by rms with a ring that jumps on onsets
type Pulse struct {
	color    color.RGBA
	ring     color.RGBA
	response float64

	radius float64 // smoothed, fraction of the short side
	ringR  float64
	ringA  float64
	bass   float64
}

func NewPulse(env Env, params Params) (Scene, error) {
	return &Pulse{
		color:    params.Color("color", colornames.Deepskyblue),
		ring:     params.Color("ring", colornames.White),
		response: params.Float("response", 12),
	}, nil
}

func (p *Pulse) Enter() {
	p.radius, p.ringR, p.ringA, p.bass = 0, 0, 0, 0
}

func (p *Pulse) Update(dt, t float64, table *features.Table, idx int) error {
	rms := clamp01(valueAt(table, features.SeriesRMS, idx))
	onset := clamp01(valueAt(table, features.SeriesOnset, idx))

	p.radius = approach(p.radius, 0.1+0.3*rms, p.response, dt)
	p.bass = approach(p.bass, clamp01(valueAt(table, "bass", idx)), p.response, dt)

	if onset > 0.6 && onset > p.ringA {
		p.ringA = onset
		p.ringR = p.radius
	}
	p.ringR += 0.5 * dt
	p.ringA = max(0, p.ringA-2*dt)
	return nil
}

func (p *Pulse) Draw(dst draw.Image) error {
	fill(dst, scale(p.color, 0.15*p.bass))

	b := dst.Bounds()
	short := float64(min(b.Dx(), b.Dy()))
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	fillCircle(dst, cx, cy, p.radius*short, p.color)
	if p.ringA > 0 {
		strokeCircle(dst, cx, cy, p.ringR*short, max(1, 0.01*short), scale(p.ring, p.ringA))
	}
	return nil
}
