package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesIdentity(t *testing.T) {
	t.Run("tag order does not affect equality", func(t *testing.T) {
		a := NewSeriesBuilder("rs_skill").Tag("user", "zezima").Tag("skill", "ATTACK").Build()
		b := NewSeriesBuilder("rs_skill").Tag("skill", "ATTACK").Tag("user", "zezima").Build()

		assert.True(t, a.Equal(b))
		assert.Equal(t, "rs_skill,skill=ATTACK,user=zezima", a.Key())
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("different tag values are different series", func(t *testing.T) {
		a := NewSeries("rs_skill", map[string]string{"skill": "ATTACK"})
		b := NewSeries("rs_skill", map[string]string{"skill": "DEFENCE"})

		assert.False(t, a.Equal(b))
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("separators inside values cannot collide", func(t *testing.T) {
		a := NewSeries("m", map[string]string{"a": "1,b=2"})
		b := NewSeries("m", map[string]string{"a": "1", "b": "2"})

		assert.False(t, a.Equal(b))
	})

	t.Run("builder reuse does not mutate built series", func(t *testing.T) {
		builder := NewSeriesBuilder("rs_self").Tag("user", "a")
		first := builder.Build()
		builder.Tag("user", "b")

		v, ok := first.Tag("user")
		require.True(t, ok)
		assert.Equal(t, "a", v)
	})

	t.Run("tags returns a copy", func(t *testing.T) {
		s := NewSeries("rs_self", map[string]string{"user": "a"})
		tags := s.Tags()
		tags["user"] = "mutated"

		v, _ := s.Tag("user")
		assert.Equal(t, "a", v)
	})
}

func TestMeasurementBuilder(t *testing.T) {
	series := NewSeries("rs_inventory", map[string]string{"type": "GE"})

	t.Run("keeps insertion order and replaces in place", func(t *testing.T) {
		m := NewMeasurementBuilder(series).
			Int("b", 1).
			Int("a", 2).
			Int("b", 3).
			Build()

		assert.Equal(t, []string{"b", "a"}, m.FieldKeys())
		v, ok := m.Field("b")
		require.True(t, ok)
		assert.Equal(t, int64(3), v.Int())
	})

	t.Run("mixed field kinds", func(t *testing.T) {
		m := NewMeasurementBuilder(series).
			Float("combat", 3.4).
			String("name", "none").
			Int("skulled", 0).
			Build()

		combat, _ := m.Field("combat")
		name, _ := m.Field("name")
		skulled, _ := m.Field("skulled")
		assert.Equal(t, KindFloat, combat.Kind())
		assert.Equal(t, "none", name.Str())
		assert.Equal(t, int64(0), skulled.Interface())
	})

	t.Run("built measurement is detached from builder", func(t *testing.T) {
		b := NewMeasurementBuilder(series).Int("a", 1)
		m := b.Build()
		b.Int("c", 5)

		assert.Equal(t, 1, m.Len())
		assert.True(t, m.Time().IsZero())
	})
}
