package influx

import (
	"strconv"
	"strings"

	"github.com/vjranagit/tickstats/pkg/types"
)

var (
	measurementEscaper = strings.NewReplacer(`,`, `\,`, ` `, `\ `, "\n", `\n`)
	keyEscaper         = strings.NewReplacer(`,`, `\,`, `=`, `\=`, ` `, `\ `, "\n", `\n`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Encoder renders measurements in InfluxDB line protocol with nanosecond
// timestamps. The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// Encode appends one line per measurement and returns the accumulated
// buffer. Measurements without fields are skipped.
func (e *Encoder) Encode(batch []types.Measurement) []byte {
	for _, m := range batch {
		e.buf = AppendLine(e.buf, m)
	}
	return e.buf
}

// Reset empties the buffer and keeps its capacity
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// AppendLine appends the line for m to dst, terminated by a newline
func AppendLine(dst []byte, m types.Measurement) []byte {
	fields := m.Fields()
	if len(fields) == 0 {
		return dst
	}

	s := m.Series()
	dst = append(dst, measurementEscaper.Replace(s.Name())...)
	for _, t := range s.SortedTags() {
		if t.Value == "" {
			continue
		}
		dst = append(dst, ',')
		dst = append(dst, keyEscaper.Replace(t.Key)...)
		dst = append(dst, '=')
		dst = append(dst, keyEscaper.Replace(t.Value)...)
	}

	for i, f := range fields {
		if i == 0 {
			dst = append(dst, ' ')
		} else {
			dst = append(dst, ',')
		}
		dst = append(dst, keyEscaper.Replace(f.Key)...)
		dst = append(dst, '=')
		dst = appendValue(dst, f.Value)
	}

	if ts := m.Time(); !ts.IsZero() {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, ts.UnixNano(), 10)
	}
	return append(dst, '\n')
}

func appendValue(dst []byte, v types.FieldValue) []byte {
	switch v.Kind() {
	case types.KindInt:
		dst = strconv.AppendInt(dst, v.Int(), 10)
		return append(dst, 'i')
	case types.KindFloat:
		return strconv.AppendFloat(dst, v.Float(), 'f', -1, 64)
	default:
		dst = append(dst, '"')
		dst = append(dst, stringEscaper.Replace(v.Str())...)
		return append(dst, '"')
	}
}
