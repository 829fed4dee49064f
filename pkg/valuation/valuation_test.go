package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tickstats/pkg/game"
	"github.com/vjranagit/tickstats/pkg/types"
)

type fakePrices struct {
	canonical map[int]int
	items     map[int]game.ItemComposition
	market    map[int]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		canonical: map[int]int{},
		items: map[int]game.ItemComposition{
			game.ItemCoins:         {ID: game.ItemCoins, Name: "Coins", Price: 1},
			game.ItemPlatinumToken: {ID: game.ItemPlatinumToken, Name: "Platinum token", Price: 1000},
		},
		market: map[int]int{},
	}
}

func (f *fakePrices) with(id int, name string, store, market int) *fakePrices {
	f.items[id] = game.ItemComposition{ID: id, Name: name, Price: store}
	f.market[id] = market
	return f
}

func (f *fakePrices) Canonicalize(id int) int {
	if c, ok := f.canonical[id]; ok {
		return c
	}
	return id
}

func (f *fakePrices) ItemComposition(id int) (game.ItemComposition, bool) {
	c, ok := f.items[id]
	return c, ok
}

func (f *fakePrices) ItemPrice(id int) (int, bool) {
	p, ok := f.market[id]
	return p, ok
}

func fieldMap(m types.Measurement) map[string]int64 {
	out := make(map[string]int64)
	for _, f := range m.Fields() {
		out[f.Key] = f.Value.Int()
	}
	return out
}

var (
	geSeries    = types.NewSeries("rs_inventory", map[string]string{"type": "GE"})
	haSeries    = types.NewSeries("rs_inventory", map[string]string{"type": "HA"})
	countSeries = types.NewSeries("rs_inventory", map[string]string{"type": "COUNT"})
)

func TestAggregateWorkedExample(t *testing.T) {
	// Arrange
	prices := newFakePrices().
		with(1, "A", 100, 100).
		with(2, "B", 50, 50)
	items := []game.Item{
		{ID: game.ItemCoins, Quantity: 500},
		{ID: 1, Quantity: 2},
		{ID: 2, Quantity: 1},
	}

	// Act
	ms := NewAggregator(prices).Aggregate(items, 1).Measurements(geSeries, haSeries, countSeries)

	// Assert
	require.Len(t, ms, 3)
	assert.Equal(t, map[string]int64{"Coins": 500, "other": 250, "total": 750}, fieldMap(ms[0]))
	assert.Equal(t, map[string]int64{"Coins": 500, "other": 150, "total": 650}, fieldMap(ms[1]))
	assert.Equal(t, map[string]int64{"Coins": 500}, fieldMap(ms[2]))
	assert.Equal(t, []string{"Coins", "other", "total"}, ms[0].FieldKeys())
	assert.True(t, ms[0].Series().Equal(geSeries))
}

func TestAggregateCurrency(t *testing.T) {
	agg := NewAggregator(newFakePrices())

	t.Run("coins are worth face value", func(t *testing.T) {
		v := agg.Aggregate([]game.Item{{ID: game.ItemCoins, Quantity: 1234}}, 5)

		require.Len(t, v.Top, 1)
		assert.Equal(t, ItemValue{Name: "Coins", GEValue: 1234, HAValue: 1234, Quantity: 1234}, v.Top[0])
	})

	t.Run("platinum tokens are worth a thousand coins", func(t *testing.T) {
		v := agg.Aggregate([]game.Item{{ID: game.ItemPlatinumToken, Quantity: 7}}, 5)

		require.Len(t, v.Top, 1)
		assert.Equal(t, ItemValue{Name: "Platinum token", GEValue: 7000, HAValue: 7000, Quantity: 7}, v.Top[0])
	})
}

func TestAggregateFiltersInvalidSlots(t *testing.T) {
	prices := newFakePrices().with(1, "A", 10, 10)
	items := []game.Item{
		{ID: -1, Quantity: 5},
		{ID: 1, Quantity: 0},
		{ID: 1, Quantity: -3},
		{ID: game.ItemBankFiller, Quantity: 1},
	}

	v := NewAggregator(prices).Aggregate(items, 10)

	assert.Empty(t, v.Top)
	assert.Equal(t, ItemValue{Name: TotalName}, v.Total)
	assert.Equal(t, ItemValue{Name: OtherName}, v.Other)
}

func TestAggregateCanonicalizesAndGroups(t *testing.T) {
	prices := newFakePrices().with(100, "Shark", 1000, 900)
	prices.canonical[101] = 100 // noted
	items := []game.Item{
		{ID: 100, Quantity: 3},
		{ID: 101, Quantity: 7},
	}

	v := NewAggregator(prices).Aggregate(items, 5)

	require.Len(t, v.Top, 1)
	assert.Equal(t, ItemValue{Name: "Shark", GEValue: 9000, HAValue: 6000, Quantity: 10}, v.Top[0])
}

func TestAggregateUnresolvablePrices(t *testing.T) {
	prices := newFakePrices().with(1, "Known", 10, 20)
	items := []game.Item{
		{ID: 1, Quantity: 1},
		{ID: 500, Quantity: 4}, // no composition, no price
		{ID: 501, Quantity: 2},
	}

	v := NewAggregator(prices).Aggregate(items, 5)

	require.Len(t, v.Top, 2)
	assert.Equal(t, "Known", v.Top[0].Name)
	assert.Equal(t, ItemValue{Name: UnknownName, Quantity: 6}, v.Top[1])
	assert.Equal(t, int64(20), v.Total.GEValue)
}

func TestAggregateStableTies(t *testing.T) {
	prices := newFakePrices().
		with(1, "First", 0, 50).
		with(2, "Second", 0, 50).
		with(3, "Third", 0, 50).
		with(4, "Big", 0, 500)
	items := []game.Item{
		{ID: 1, Quantity: 1},
		{ID: 2, Quantity: 1},
		{ID: 4, Quantity: 1},
		{ID: 3, Quantity: 1},
	}

	ms := NewAggregator(prices).Aggregate(items, 3).Measurements(geSeries, haSeries, countSeries)

	assert.Equal(t, []string{"Big", "First", "Second", "other", "total"}, ms[0].FieldKeys())
	assert.Equal(t, map[string]int64{"Big": 500, "First": 50, "Second": 50, "other": 50, "total": 650}, fieldMap(ms[0]))
}

func TestAggregateTopNZero(t *testing.T) {
	prices := newFakePrices().with(1, "A", 100, 100)
	items := []game.Item{
		{ID: game.ItemCoins, Quantity: 10},
		{ID: 1, Quantity: 1},
	}

	ms := NewAggregator(prices).Aggregate(items, 0).Measurements(geSeries, haSeries, countSeries)

	assert.Equal(t, []string{"other", "total"}, ms[0].FieldKeys())
	assert.Equal(t, []string{"other", "total"}, ms[1].FieldKeys())
	assert.Equal(t, 0, ms[2].Len())
	assert.Equal(t, map[string]int64{"other": 110, "total": 110}, fieldMap(ms[0]))
}

func TestAggregateBucketNameCollision(t *testing.T) {
	prices := newFakePrices().
		with(10, "other", 100, 500).
		with(11, "total", 100, 400).
		with(12, "Bronze dagger", 10, 150)
	items := []game.Item{{ID: 10, Quantity: 1}, {ID: 11, Quantity: 1}, {ID: 12, Quantity: 1}}

	v := NewAggregator(prices).Aggregate(items, 2)
	ge := fieldMap(v.Measurements(geSeries, haSeries, countSeries)[0])

	assert.Equal(t, map[string]int64{
		"other_item": 500,
		"total_item": 400,
		"other":      150,
		"total":      1_050,
	}, ge)
}

func TestAggregateConservation(t *testing.T) {
	prices := newFakePrices()
	var items []game.Item
	for id := 1; id <= 40; id++ {
		prices.with(id, string(rune('A'+id%26))+string(rune('a'+id/26)), id*7, (id*13)%97)
		items = append(items, game.Item{ID: id, Quantity: id % 5})
	}
	items = append(items, game.Item{ID: game.ItemCoins, Quantity: 999})

	for _, topN := range []int{0, 1, 5, 25, 100} {
		v := NewAggregator(prices).Aggregate(items, topN)

		var ge, ha int64
		for _, row := range v.Top {
			ge += row.GEValue
			ha += row.HAValue
		}
		ge += v.Other.GEValue
		ha += v.Other.HAValue

		assert.Equal(t, v.Total.GEValue, ge, "topN %d", topN)
		assert.Equal(t, v.Total.HAValue, ha, "topN %d", topN)
		assert.Zero(t, v.Total.Quantity)
		assert.Zero(t, v.Other.Quantity)
		assert.LessOrEqual(t, len(v.Top), topN)
	}
}
