package scene

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const circleSegments = 64

func fill(dst draw.Image, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// path is a closed polygon in destination coordinates
type path [][2]float32

func circlePath(cx, cy, r float64, reverse bool) path {
	p := make(path, circleSegments)
	for i := range p {
		a := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			a = -a
		}
		p[i] = [2]float32{float32(cx + r*math.Cos(a)), float32(cy + r*math.Sin(a))}
	}
	return p
}

// fillPaths rasterizes closed polygons together, so an inner path wound the
// other way cuts a hole.
func fillPaths(dst draw.Image, c color.Color, paths ...path) {
	b := dst.Bounds()
	if b.Empty() {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	ox, oy := float32(b.Min.X), float32(b.Min.Y)
	for _, p := range paths {
		if len(p) < 3 {
			continue
		}
		z.MoveTo(p[0][0]-ox, p[0][1]-oy)
		for _, pt := range p[1:] {
			z.LineTo(pt[0]-ox, pt[1]-oy)
		}
		z.ClosePath()
	}
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func fillCircle(dst draw.Image, cx, cy, r float64, c color.Color) {
	if r <= 0 {
		return
	}
	fillPaths(dst, c, circlePath(cx, cy, r, false))
}

func strokeCircle(dst draw.Image, cx, cy, r, width float64, c color.Color) {
	inner := r - width
	if r <= 0 || inner < 0 {
		fillCircle(dst, cx, cy, r, c)
		return
	}
	fillPaths(dst, c, circlePath(cx, cy, r, false), circlePath(cx, cy, inner, true))
}

// wedge is an annular sector between angles a0 and a1
func wedge(cx, cy, r0, r1, a0, a1 float64) path {
	const steps = 8
	p := make(path, 0, 2*(steps+1))
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/steps
		p = append(p, [2]float32{float32(cx + r1*math.Cos(a)), float32(cy + r1*math.Sin(a))})
	}
	for i := steps; i >= 0; i-- {
		a := a0 + (a1-a0)*float64(i)/steps
		p = append(p, [2]float32{float32(cx + r0*math.Cos(a)), float32(cy + r0*math.Sin(a))})
	}
	return p
}

func drawText(dst draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// scale multiplies a color's channels by k in [0, 1]
func scale(c color.RGBA, k float64) color.RGBA {
	k = clamp01(k)
	return color.RGBA{
		R: uint8(float64(c.R) * k),
		G: uint8(float64(c.G) * k),
		B: uint8(float64(c.B) * k),
		A: c.A,
	}
}

// hsv converts hue in [0, 360) and saturation/value in [0, 1]
func hsv(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 0xff,
	}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// approach moves cur toward target with an exponential time constant
func approach(cur, target, rate, dt float64) float64 {
	if dt <= 0 {
		return cur
	}
	return target + (cur-target)*math.Exp(-rate*dt)
}
