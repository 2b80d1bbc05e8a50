package telemetry

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Message is the wire payload of one sample.
type Message struct {
	TransactionID int64  `json:"transaction_id"`
	Timestamp     int64  `json:"timestamp"`
	SensorType    int    `json:"sensor_type"`
	SensorData    Fields `json:"sensor_data"`
}

// Field is one named value of sensor_data.
type Field struct {
	Name  string
	Value float64
}

// Fields keeps sensor_data in channel table order.
type Fields []Field

// MarshalJSON writes an object with the values rounded to two decimals.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if math.IsNaN(field.Value) || math.IsInf(field.Value, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(field.Value, 'f', 2, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the value of name.
func (f Fields) Lookup(name string) (float64, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return 0, false
}
