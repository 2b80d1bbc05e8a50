package chart

// Capacity is the number of samples kept on screen.
const Capacity = 100

// MaxSeries is the number of values a sample can plot.
const MaxSeries = 4

// DrawCommand is one line segment: from the value at the predecessor index to the value at the
// current index, placed at screen slot Slot.
type DrawCommand struct {
	Series int
	Slot   int
	From   float64
	To     float64
}

// Ring is the fixed-capacity history behind the chart. The zero value is ready to use.
type Ring struct {
	points     [Capacity][MaxSeries]float64
	cursor     int
	wrapped    bool
	valueCount int
	lo, hi     float64
	last       int // index written by the latest AddSample, -1 when empty
}

// Prepare resets the history for a new channel.
func (r *Ring) Prepare(valueCount int, lo, hi float64) {
	if valueCount < 1 {
		valueCount = 1
	}
	if valueCount > MaxSeries {
		valueCount = MaxSeries
	}
	r.points = [Capacity][MaxSeries]float64{}
	r.cursor = 0
	r.wrapped = false
	r.valueCount = valueCount
	r.lo, r.hi = lo, hi
	r.last = -1
}

// AddSample stores values at the cursor and returns the segments of the whole visible span.
func (r *Ring) AddSample(values [MaxSeries]float64) []DrawCommand {
	if r.valueCount == 0 {
		r.Prepare(1, r.lo, r.hi)
	}
	// the flip to wrapped happens once, when the last slot is reached
	if r.wrapped || r.cursor >= Capacity-1 {
		r.cursor %= Capacity
		r.wrapped = true
	}

	idx := r.cursor % Capacity
	for i := 0; i < r.valueCount; i++ {
		r.points[idx][i] = values[i]
	}
	r.last = idx
	r.cursor++
	return r.span(idx)
}

// Commands returns the segments of the visible span without storing anything.
func (r *Ring) Commands() []DrawCommand {
	if r.valueCount == 0 || r.last < 0 {
		return nil
	}
	return r.span(r.last)
}

func (r *Ring) span(idx int) []DrawCommand {
	start, length := 0, idx+1
	if r.wrapped {
		start, length = (idx+1)%Capacity, Capacity
	}

	cmds := make([]DrawCommand, 0, length*r.valueCount)
	for slot := 0; slot < length; slot++ {
		k := (slot + start) % Capacity
		prev := k - 1
		if k == 0 {
			prev = Capacity - 1
		}
		for series := 0; series < r.valueCount; series++ {
			cmds = append(cmds, DrawCommand{
				Series: series,
				Slot:   slot,
				From:   r.points[prev][series],
				To:     r.points[k][series],
			})
		}
	}
	return cmds
}

func (r *Ring) ValueCount() int { return r.valueCount }

func (r *Ring) Bounds() (float64, float64) { return r.lo, r.hi }

func (r *Ring) Wrapped() bool { return r.wrapped }

func (r *Ring) Cursor() int { return r.cursor }

// Point returns the stored value of series at index.
func (r *Ring) Point(index, series int) float64 {
	return r.points[index%Capacity][series%MaxSeries]
}
