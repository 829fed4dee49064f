package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tickstats/pkg/types"
)

func skillSeries(user, skill string) types.Series {
	return types.NewSeries("rs_skill", map[string]string{"user": user, "skill": skill})
}

func TestIndexAddSeries(t *testing.T) {
	idx := NewIndex()

	id, added := idx.AddSeries(skillSeries("zezima", "ATTACK"))
	assert.True(t, added)
	assert.Equal(t, skillSeries("zezima", "ATTACK").Fingerprint(), id)

	id2, added := idx.AddSeries(skillSeries("zezima", "ATTACK"))
	assert.False(t, added)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, idx.SeriesCount())

	meta, ok := idx.GetSeries(id)
	require.True(t, ok)
	assert.Equal(t, "rs_skill,skill=ATTACK,user=zezima", meta.Series.Key())
}

func TestIndexFindSeries(t *testing.T) {
	idx := NewIndex()
	for _, s := range []types.Series{
		skillSeries("zezima", "ATTACK"),
		skillSeries("zezima", "MAGIC"),
		skillSeries("lynx", "ATTACK"),
		types.NewSeries("rs_self", map[string]string{"user": "zezima"}),
	} {
		idx.AddSeries(s)
	}

	assert.Len(t, idx.FindSeries("rs_skill", nil), 3)
	assert.Len(t, idx.FindSeries("", map[string]string{"user": "zezima"}), 3)
	assert.Len(t, idx.FindSeries("rs_skill", map[string]string{"user": "zezima"}), 2)
	assert.Equal(t,
		[]uint64{skillSeries("lynx", "ATTACK").Fingerprint()},
		idx.FindSeries("rs_skill", map[string]string{"user": "lynx", "skill": "ATTACK"}))
	assert.Len(t, idx.FindSeries("", nil), 4)
	assert.Empty(t, idx.FindSeries("rs_skill", map[string]string{"skill": "COOKING"}))
	assert.Empty(t, idx.FindSeries("rs_inventory", nil))
}

func TestIndexUpdateTimeRange(t *testing.T) {
	idx := NewIndex()
	id, _ := idx.AddSeries(skillSeries("zezima", "ATTACK"))

	require.True(t, idx.UpdateTimeRange(id, 1000, 2000))
	require.True(t, idx.UpdateTimeRange(id, 1500, 1800))
	meta, _ := idx.GetSeries(id)
	assert.Equal(t, int64(1000), meta.MinTime)
	assert.Equal(t, int64(2000), meta.MaxTime)

	require.True(t, idx.UpdateTimeRange(id, 500, 2500))
	assert.Equal(t, int64(500), meta.MinTime)
	assert.Equal(t, int64(2500), meta.MaxTime)

	assert.False(t, idx.UpdateTimeRange(12345, 1, 2))
}

func BenchmarkIndexFindSeries(b *testing.B) {
	idx := NewIndex()
	for i := 0; i < 10000; i++ {
		idx.AddSeries(skillSeries(fmt.Sprintf("user%d", i%100), fmt.Sprintf("S%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.FindSeries("rs_skill", map[string]string{"user": "user7"})
	}
}
