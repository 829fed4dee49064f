package types

import (
	"fmt"
	"time"
)

// FieldKind is the type of a field value
type FieldKind uint8

const (
	KindInt FieldKind = iota + 1
	KindFloat
	KindString
)

func (k FieldKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// FieldValue holds an int64, float64 or string
type FieldValue struct {
	kind FieldKind
	i    int64
	f    float64
	s    string
}

func IntValue(v int64) FieldValue     { return FieldValue{kind: KindInt, i: v} }
func FloatValue(v float64) FieldValue { return FieldValue{kind: KindFloat, f: v} }
func StringValue(v string) FieldValue { return FieldValue{kind: KindString, s: v} }

func (v FieldValue) Kind() FieldKind { return v.kind }
func (v FieldValue) Int() int64      { return v.i }
func (v FieldValue) Float() float64  { return v.f }
func (v FieldValue) Str() string     { return v.s }

// Interface returns the value as a plain Go value
func (v FieldValue) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v FieldValue) String() string {
	return fmt.Sprint(v.Interface())
}

// Field is a named value within a measurement
type Field struct {
	Key   string
	Value FieldValue
}

// Measurement is one sample of a series. Fields keep insertion order.
type Measurement struct {
	series Series
	fields []Field
	time   time.Time
}

// Series returns the series the measurement belongs to
func (m Measurement) Series() Series {
	return m.series
}

// Fields returns a copy of the fields in insertion order
func (m Measurement) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Field looks a field up by key
func (m Measurement) Field(key string) (FieldValue, bool) {
	for _, f := range m.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// FieldKeys returns the field keys in insertion order
func (m Measurement) FieldKeys() []string {
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields
func (m Measurement) Len() int {
	return len(m.fields)
}

// Time returns the sample timestamp; zero until submitted
func (m Measurement) Time() time.Time {
	return m.time
}

// WithTime returns a copy stamped with t
func (m Measurement) WithTime(t time.Time) Measurement {
	m.time = t
	return m
}

// MeasurementBuilder accumulates fields for one Measurement
type MeasurementBuilder struct {
	series Series
	fields []Field
	index  map[string]int
}

// NewMeasurementBuilder starts a measurement for the given series
func NewMeasurementBuilder(series Series) *MeasurementBuilder {
	return &MeasurementBuilder{
		series: series,
		index:  make(map[string]int),
	}
}

// Int sets an integer field
func (b *MeasurementBuilder) Int(key string, v int64) *MeasurementBuilder {
	return b.set(key, IntValue(v))
}

// Float sets a float field
func (b *MeasurementBuilder) Float(key string, v float64) *MeasurementBuilder {
	return b.set(key, FloatValue(v))
}

// String sets a string field
func (b *MeasurementBuilder) String(key, v string) *MeasurementBuilder {
	return b.set(key, StringValue(v))
}

// set replaces an existing key in place so field order stays first-set order
func (b *MeasurementBuilder) set(key string, v FieldValue) *MeasurementBuilder {
	if i, ok := b.index[key]; ok {
		b.fields[i].Value = v
		return b
	}
	b.index[key] = len(b.fields)
	b.fields = append(b.fields, Field{Key: key, Value: v})
	return b
}

// Build freezes the builder
func (b *MeasurementBuilder) Build() Measurement {
	return Measurement{
		series: b.series,
		fields: append([]Field(nil), b.fields...),
	}
}
