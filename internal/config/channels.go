package config

import "time"

const (
	// ChannelCount is the number of fixed sensor channel types.
	ChannelCount = 14
	// MaxValues is the largest number of values a single sample carries.
	MaxValues = 4
)

// ChannelConf overrides one row of the built-in channel table.
type ChannelConf struct {
	ID       int       `toml:"id"`
	Names    []string  `toml:"names"`    // Names - имена полей для отображения и публикации.
	Formats  []string  `toml:"formats"`  // Formats - формат значений (printf).
	Interval *Duration `toml:"interval"` // Interval - интервал опроса канала.
}

// ChannelSpec is the static per-channel display and sampling data.
type ChannelSpec struct {
	Names    [MaxValues]string
	Formats  [MaxValues]string
	Interval time.Duration
}

// ValueCount returns the number of leading fields with a display name, at least 1.
func (s ChannelSpec) ValueCount() int {
	n := 0
	for i, name := range s.Names {
		if name != "" {
			n = i + 1
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// ChannelTable is indexed by channel id. It is built once at startup and only read afterwards.
type ChannelTable [ChannelCount]ChannelSpec

// Spec returns the row for id, or an empty row when id is out of range.
func (t *ChannelTable) Spec(id int) ChannelSpec {
	if id < 0 || id >= ChannelCount {
		return ChannelSpec{}
	}
	return t[id]
}

var defaultChannels = ChannelTable{
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 5.2fm/s²", "% 5.2fm/s²", "% 5.2fm/s²", ""}},  // accelerometer
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 5.2fm/s²", "% 5.2fm/s²", "% 5.2fm/s²", ""}},  // gravity
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 5.2fm/s²", "% 5.2fm/s²", "% 5.2fm/s²", ""}},  // linear acceleration
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 7.2fµT", "% 7.2fµT", "% 7.2fµT", ""}},        // magnetic
	{Names: [4]string{"x", "y", "z", "v"}, Formats: [4]string{"% 5.2f", "% 5.2f", "% 5.2f", "% 5.2f"}},     // rotation vector
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 5.2f", "% 5.2f", "% 5.2f", ""}},             // orientation
	{Names: [4]string{"x", "y", "z", ""}, Formats: [4]string{"% 7.2f°/s", "% 7.2f°/s", "% 7.2f°/s", ""}},    // gyroscope
	{Names: [4]string{"lux", "", "", ""}, Formats: [4]string{"% 4.0fLux", "", "", ""}},                      // light
	{Names: [4]string{"proximity", "", "", ""}, Formats: [4]string{"% 1.0f", "", "", ""}},                   // proximity
	{Names: [4]string{"hPa", "", "", ""}, Formats: [4]string{"% 6.2fhPa", "", "", ""}},                      // pressure
	{Names: [4]string{"UV", "", "", ""}, Formats: [4]string{"% 4.2f", "", "", ""}},                          // ultraviolet
	{Names: [4]string{"temperature", "", "", ""}, Formats: [4]string{"% 5.2f°", "", "", ""}},                // temperature
	{Names: [4]string{"humidity", "", "", ""}, Formats: [4]string{"", "", "", ""}},                          // humidity
	{Names: [4]string{"HeartRate", "P2P", "", ""}, Formats: [4]string{"% 6.2f", "%4.0fms", "", ""}},          // heart rate
}

// ChannelTable merges the built-in table with the [[channel]] overrides.
func (c *Config) ChannelTable() ChannelTable {
	table := defaultChannels
	for i := range table {
		table[i].Interval = c.Sensor.Interval.D()
	}
	for _, o := range c.Channels {
		if o.ID < 0 || o.ID >= ChannelCount {
			continue
		}
		row := &table[o.ID]
		if o.Names != nil {
			row.Names = [MaxValues]string{}
			copy(row.Names[:], o.Names)
		}
		if o.Formats != nil {
			row.Formats = [MaxValues]string{}
			copy(row.Formats[:], o.Formats)
		}
		if o.Interval != nil {
			row.Interval = o.Interval.D()
		}
	}
	return table
}
