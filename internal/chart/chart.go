// Package chart keeps the scrolling history of the selected channel and paints it.
package chart

import (
	"image"

	"github.com/fogleman/gg"
)

// Chart composes the ring buffer and the rasterizer. It is not safe for concurrent use; the
// pipeline calls it from the main loop only.
type Chart struct {
	ring    Ring
	raster  *Rasterizer
	display Display
}

// New конструктор. display may be nil.
func New(display Display) *Chart {
	c := &Chart{raster: NewRasterizer(), display: display}
	c.ring.Prepare(1, 0, 0)
	return c
}

// Prepare resets the chart for a channel and repaints the empty frame.
func (c *Chart) Prepare(valueCount int, lo, hi float64) error {
	c.ring.Prepare(valueCount, lo, hi)
	c.raster.SetScale(lo, hi)
	c.raster.ClearAndDrawAxis()
	return c.raster.Flush(c.display)
}

// AddSample appends values and repaints the visible span.
func (c *Chart) AddSample(values [MaxSeries]float64) error {
	c.paint(c.ring.AddSample(values))
	return c.raster.Flush(c.display)
}

// Redraw repaints the current content without storing anything.
func (c *Chart) Redraw() error {
	c.paint(c.ring.Commands())
	return c.raster.Flush(c.display)
}

func (c *Chart) paint(cmds []DrawCommand) {
	c.raster.ClearAndDrawAxis()
	for _, cmd := range cmds {
		c.raster.DrawCommand(cmd)
	}
}

// ValueCount is the series count of the last Prepare.
func (c *Chart) ValueCount() int {
	return c.ring.ValueCount()
}

func (c *Chart) Surface() *image.RGBA {
	return c.raster.Surface()
}

// PNGDisplay writes every frame to a PNG file.
type PNGDisplay struct {
	Path string
}

func (d PNGDisplay) Update(surface *image.RGBA, _ image.Rectangle) error {
	return gg.SavePNG(d.Path, surface)
}
