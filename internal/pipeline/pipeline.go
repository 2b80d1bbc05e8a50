// Package pipeline wires the sampling, chart and publish paths for the selected channel.
package pipeline

import (
	"fmt"
	"image"

	"kusensors/internal/chart"
	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/loop"
	"kusensors/internal/metrics"
	"kusensors/internal/sensor"
	"kusensors/internal/shaper"
)

// Publisher is the network path. *telemetry.Publisher implements it.
type Publisher interface {
	Publish(channel int, values [config.MaxValues]float64) bool
}

// InfoText is the capability text of a channel for the info display.
type InfoText struct {
	Supported  string
	Range      string
	Resolution string
	Vendor     string
}

// Lines returns the text in display order.
func (i InfoText) Lines() []string {
	return []string{i.Supported, i.Range, i.Resolution, i.Vendor}
}

// FieldText is one name/value pair of the data display. Both are empty for unnamed fields.
type FieldText struct {
	Name  string
	Value string
}

// Pipeline is the context of the running application. Every method must run on the main loop.
type Pipeline struct {
	log       logger.Logger
	registry  *sensor.Registry
	shaper    *shaper.Shaper
	chart     *chart.Chart
	publisher Publisher
	table     *config.ChannelTable

	active   bool
	current  sensor.ChannelType
	prepared bool
	last     sensor.Sample
	hasLast  bool
}

// New builds the shaper and registers it as the event handler of every channel. publisher may
// be nil when telemetry is disabled.
func New(log logger.Logger, l *loop.Loop, driver sensor.Driver, table *config.ChannelTable,
	c *chart.Chart, publisher Publisher, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		log:       log,
		registry:  sensor.NewRegistry(log, driver, table),
		chart:     c,
		publisher: publisher,
		table:     table,
	}
	p.shaper = shaper.New(log, l, p.registry, table, shaper.Fanout{
		shaper.SinkFunc(p.drawSample),
		shaper.SinkFunc(p.publishSample),
	}, m)
	p.registry.Initialize(p.shaper.HandleEvent)
	return p
}

// SelectChannel switches sampling to t, reads it once and prepares the chart for it.
func (p *Pipeline) SelectChannel(t sensor.ChannelType) error {
	l := p.log.With(logger.Fields{"module": "pipeline", "channel": t.String()})

	p.prepared = false
	p.hasLast = false
	p.active = false
	if err := p.shaper.SelectChannel(t); err != nil {
		return err
	}
	p.active = true
	p.current = t

	// a successful read prepares the chart through the sample path
	if _, ok := p.shaper.ReadCurrent(); !ok {
		p.prepare(p.table.Spec(int(t)).ValueCount())
	}
	l.Info("channel selected")
	return nil
}

// Stop stops sampling. The chart keeps its content.
func (p *Pipeline) Stop() {
	p.shaper.Stop()
	p.active = false
}

// Current returns the selected channel.
func (p *Pipeline) Current() (sensor.ChannelType, bool) {
	return p.current, p.active
}

// Redraw repaints the chart without adding a sample.
func (p *Pipeline) Redraw() {
	if err := p.chart.Redraw(); err != nil {
		p.log.With(logger.Fields{"module": "pipeline"}).Errorf("redraw: %v", err)
	}
}

func (p *Pipeline) Surface() *image.RGBA {
	return p.chart.Surface()
}

// Registry exposes the channel capabilities.
func (p *Pipeline) Registry() *sensor.Registry {
	return p.registry
}

// Close stops sampling and releases every listener.
func (p *Pipeline) Close() error {
	p.Stop()
	return p.registry.Finalize()
}

func (p *Pipeline) prepare(valueCount int) {
	lo, hi := p.registry.GetRange(p.current)
	if err := p.chart.Prepare(valueCount, lo, hi); err != nil {
		p.log.With(logger.Fields{"module": "pipeline"}).Errorf("chart prepare: %v", err)
	}
	p.prepared = true
}

func (p *Pipeline) selected(s sensor.Sample) bool {
	return p.active && s.Channel == p.current
}

// drawSample is the chart path.
func (p *Pipeline) drawSample(s sensor.Sample) {
	if !p.selected(s) {
		return
	}
	if !p.prepared || p.chart.ValueCount() != s.ValueCount {
		p.prepare(s.ValueCount)
	}
	if err := p.chart.AddSample(s.Values); err != nil {
		p.log.With(logger.Fields{"module": "pipeline"}).Errorf("chart: %v", err)
	}
}

// publishSample is the publish path. It also keeps the sample for the data display.
func (p *Pipeline) publishSample(s sensor.Sample) {
	if !p.selected(s) {
		return
	}
	// the published and displayed P2P field is the hardware interval, not the drawn beat
	if s.Channel == sensor.HeartRate {
		s.Values[1] = s.Values[2]
	}
	p.last, p.hasLast = s, true

	if p.publisher != nil {
		p.publisher.Publish(int(s.Channel), s.Values)
	}
}

// Info returns the capability text of t.
func (p *Pipeline) Info(t sensor.ChannelType) InfoText {
	ch := p.registry.Describe(t)
	supported := "NO"
	if ch.Supported {
		supported = "YES"
	}
	return InfoText{
		Supported:  fmt.Sprintf("supported: %s", supported),
		Range:      fmt.Sprintf("range: %.2f - %.2f", ch.Min, ch.Max),
		Resolution: fmt.Sprintf("resolution: %.2f", ch.Resolution),
		Vendor:     fmt.Sprintf("vendor: %s", ch.Vendor),
	}
}

// Fields formats s with the display names and formats of its channel.
func (p *Pipeline) Fields(s sensor.Sample) [config.MaxValues]FieldText {
	var out [config.MaxValues]FieldText
	spec := p.table.Spec(int(s.Channel))
	for i := range out {
		if spec.Names[i] != "" {
			out[i].Name = spec.Names[i] + "="
		}
		if spec.Formats[i] != "" {
			out[i].Value = fmt.Sprintf(spec.Formats[i], s.Values[i])
		}
	}
	return out
}

// LastFields formats the latest sample of the selected channel.
func (p *Pipeline) LastFields() ([config.MaxValues]FieldText, bool) {
	if !p.hasLast {
		return [config.MaxValues]FieldText{}, false
	}
	return p.Fields(p.last), true
}
