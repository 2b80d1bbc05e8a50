package chart

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

const (
	Width  = 300
	Height = 158

	slotWidth     = Width / Capacity
	topMargin     = 2
	verticalScale = 0.98
	axisWidth     = 3
	arrowSize     = 5
	seriesWidth   = 2
)

var palette = [MaxSeries]color.Color{
	color.RGBA{R: 0xff, A: 0xff},
	color.RGBA{G: 0xff, A: 0xff},
	color.RGBA{B: 0xff, A: 0xff},
	color.RGBA{G: 0xff, B: 0xff, A: 0xff},
}

// Display receives the surface after every frame.
type Display interface {
	Update(surface *image.RGBA, dirty image.Rectangle) error
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(surface *image.RGBA, dirty image.Rectangle) error

func (f DisplayFunc) Update(surface *image.RGBA, dirty image.Rectangle) error {
	return f(surface, dirty)
}

// Rasterizer paints the chart into a surface that is allocated once.
type Rasterizer struct {
	surface *image.RGBA
	dc      *gg.Context
	lo, hi  float64
}

func NewRasterizer() *Rasterizer {
	surface := image.NewRGBA(image.Rect(0, 0, Width, Height))
	dc := gg.NewContextForRGBA(surface)
	// keep the axis and extreme values inside the surface
	dc.Translate(0, topMargin)
	dc.Scale(1, verticalScale)
	return &Rasterizer{surface: surface, dc: dc}
}

// SetScale sets the value range mapped onto the surface height.
func (r *Rasterizer) SetScale(lo, hi float64) {
	r.lo, r.hi = lo, hi
}

// Transform maps a value to a y coordinate before the margin transform.
func (r *Rasterizer) Transform(v float64) float64 {
	top := r.hi
	if r.lo < 0 {
		v -= r.lo
		top -= r.lo
	}
	if top == 0 {
		return Height
	}
	return Height - Height/top*v
}

// ClearAndDrawAxis paints the background and the zero-value axis.
func (r *Rasterizer) ClearAndDrawAxis() {
	r.dc.SetRGB(1, 1, 1)
	r.dc.Clear()

	y := r.Transform(0)
	end := verticalScale * Width
	r.dc.SetRGB(0, 0, 0)
	r.dc.SetLineWidth(axisWidth)
	r.dc.DrawLine(0, y, end, y)
	r.dc.DrawLine(end-arrowSize, y-arrowSize, end, y)
	r.dc.DrawLine(end-arrowSize, y+arrowSize, end, y)
	r.dc.Stroke()
}

// DrawSegment draws one series line in the colour of series.
func (r *Rasterizer) DrawSegment(prevX, prevY, curX, curY float64, series int) {
	r.dc.SetColor(palette[series%MaxSeries])
	r.dc.SetLineWidth(seriesWidth)
	r.dc.DrawLine(prevX, prevY, curX, curY)
	r.dc.Stroke()
}

// DrawCommand draws a ring command at its slot.
func (r *Rasterizer) DrawCommand(c DrawCommand) {
	x := float64(c.Slot * slotWidth)
	r.DrawSegment(x-slotWidth, r.Transform(c.From), x, r.Transform(c.To), c.Series)
}

// Flush hands the whole surface to d.
func (r *Rasterizer) Flush(d Display) error {
	if d == nil {
		return nil
	}
	return d.Update(r.surface, r.surface.Bounds())
}

func (r *Rasterizer) Surface() *image.RGBA {
	return r.surface
}
