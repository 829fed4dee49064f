package types

import (
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// keyEscaper keeps separators inside names and values from colliding in Key
var keyEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`, "=", `\=`)

// Tag is a single indexed dimension of a series
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Series identifies a measurement stream: a name plus a tag set.
// A Series is immutable; its tags are kept sorted by key so the
// serialized key is deterministic.
type Series struct {
	name string
	tags []Tag
	key  string
}

// NewSeries builds a series from a name and a tag map
func NewSeries(name string, tags map[string]string) Series {
	b := NewSeriesBuilder(name)
	for k, v := range tags {
		b.Tag(k, v)
	}
	return b.Build()
}

// Name returns the measurement name
func (s Series) Name() string {
	return s.name
}

// Tags returns a copy of the tag set
func (s Series) Tags() map[string]string {
	out := make(map[string]string, len(s.tags))
	for _, t := range s.tags {
		out[t.Key] = t.Value
	}
	return out
}

// SortedTags returns the tags ordered by key
func (s Series) SortedTags() []Tag {
	return append([]Tag(nil), s.tags...)
}

// Tag returns the value of a single tag
func (s Series) Tag(key string) (string, bool) {
	i := sort.Search(len(s.tags), func(i int) bool { return s.tags[i].Key >= key })
	if i < len(s.tags) && s.tags[i].Key == key {
		return s.tags[i].Value, true
	}
	return "", false
}

// Key returns the canonical serialized form, name,k1=v1,k2=v2
func (s Series) Key() string {
	return s.key
}

// Fingerprint hashes the canonical key
func (s Series) Fingerprint() uint64 {
	return xxhash.Sum64String(s.key)
}

// Equal reports whether both series have the same name and tag set
func (s Series) Equal(other Series) bool {
	return s.key == other.key
}

// IsZero reports whether the series was never built
func (s Series) IsZero() bool {
	return s.name == ""
}

func (s Series) String() string {
	return s.key
}

// SeriesBuilder accumulates tags for a Series
type SeriesBuilder struct {
	name string
	tags map[string]string
}

// NewSeriesBuilder starts a series with the given measurement name
func NewSeriesBuilder(name string) *SeriesBuilder {
	return &SeriesBuilder{name: name, tags: make(map[string]string)}
}

// Measurement sets the measurement name
func (b *SeriesBuilder) Measurement(name string) *SeriesBuilder {
	b.name = name
	return b
}

// Tag sets a tag; a later call with the same key wins
func (b *SeriesBuilder) Tag(key, value string) *SeriesBuilder {
	b.tags[key] = value
	return b
}

// Build freezes the builder into an immutable Series
func (b *SeriesBuilder) Build() Series {
	tags := make([]Tag, 0, len(b.tags))
	for k, v := range b.tags {
		tags = append(tags, Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })

	var sb strings.Builder
	sb.WriteString(keyEscaper.Replace(b.name))
	for _, t := range tags {
		sb.WriteByte(',')
		sb.WriteString(keyEscaper.Replace(t.Key))
		sb.WriteByte('=')
		sb.WriteString(keyEscaper.Replace(t.Value))
	}

	return Series{name: b.name, tags: tags, key: sb.String()}
}

// QueryRequest selects stored points by measurement name and tag values
type QueryRequest struct {
	Name      string
	Tags      map[string]string
	StartTime time.Time
	EndTime   time.Time
}

// Point is a stored sample of one series
type Point struct {
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// SeriesPoints is a series together with its points in a time range
type SeriesPoints struct {
	Name   string            `json:"name"`
	Tags   map[string]string `json:"tags"`
	Points []Point           `json:"points"`
}

// QueryResult represents query results
type QueryResult struct {
	Series []SeriesPoints `json:"series"`
}
