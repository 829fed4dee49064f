// Package valuation folds a container's items into ranked, summed value rows:
// the top N items by name, an "other" bucket for the rest and a "total" bucket.
package valuation

import (
	"sort"

	"github.com/vjranagit/tickstats/pkg/game"
	"github.com/vjranagit/tickstats/pkg/types"
)

const (
	// UnknownName groups items the price source has no name for
	UnknownName = "Unknown"
	OtherName   = "other"
	TotalName   = "total"

	// reservedSuffix renames top rows whose item name is a bucket name
	reservedSuffix = "_item"
)

// PriceSource is the host's item database. Lookups may fail while the host
// is still loading; a miss is valued at zero.
type PriceSource interface {
	// Canonicalize maps noted and placeholder variants to the base item
	Canonicalize(id int) int
	ItemComposition(id int) (game.ItemComposition, bool)
	// ItemPrice is the current market price
	ItemPrice(id int) (int, bool)
}

// ItemValue accumulates the value of one named row
type ItemValue struct {
	Name     string
	GEValue  int64
	HAValue  int64
	Quantity int64
}

// Add sums other into v
func (v *ItemValue) Add(other ItemValue) {
	v.GEValue += other.GEValue
	v.HAValue += other.HAValue
	v.Quantity += other.Quantity
}

// rank is the sort key: the better of the two valuations
func (v ItemValue) rank() int64 {
	return max(v.GEValue, v.HAValue)
}

// Valuation is the result of one aggregation pass
type Valuation struct {
	// Top holds at most topN rows, highest value first
	Top   []ItemValue
	Other ItemValue
	Total ItemValue
}

// Rows returns Top followed by Other and Total
func (v Valuation) Rows() []ItemValue {
	rows := make([]ItemValue, 0, len(v.Top)+2)
	rows = append(rows, v.Top...)
	return append(rows, v.Other, v.Total)
}

// Aggregator values containers against a price source
type Aggregator struct {
	prices PriceSource
}

// NewAggregator creates an aggregator
func NewAggregator(prices PriceSource) *Aggregator {
	return &Aggregator{prices: prices}
}

// Aggregate values items and splits them into top-N, other and total rows.
// A negative topN is treated as zero.
func (a *Aggregator) Aggregate(items []game.Item, topN int) Valuation {
	if topN < 0 {
		topN = 0
	}

	values := a.group(items)

	// Stable so equal values keep first-seen order
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].rank() > values[j].rank()
	})

	result := Valuation{
		Other: ItemValue{Name: OtherName},
		Total: ItemValue{Name: TotalName},
	}
	for i, v := range values {
		result.Total.Add(v)
		if i < topN {
			if v.Name == OtherName || v.Name == TotalName {
				v.Name += reservedSuffix
			}
			result.Top = append(result.Top, v)
			continue
		}
		result.Other.Add(v)
	}

	// Quantity only means something for a single item
	result.Other.Quantity = 0
	result.Total.Quantity = 0

	return result
}

// group values every valid slot and merges stacks sharing a display name,
// keeping the order in which names were first seen
func (a *Aggregator) group(items []game.Item) []ItemValue {
	values := make([]ItemValue, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		if item.ID < 0 || item.Quantity <= 0 || item.ID == game.ItemBankFiller {
			continue
		}

		v := a.value(item)
		if i, ok := index[v.Name]; ok {
			values[i].Add(v)
			continue
		}
		index[v.Name] = len(values)
		values = append(values, v)
	}

	return values
}

func (a *Aggregator) value(item game.Item) ItemValue {
	id := a.prices.Canonicalize(item.ID)
	qty := int64(item.Quantity)

	name := UnknownName
	comp, ok := a.prices.ItemComposition(id)
	if ok && comp.Name != "" {
		name = comp.Name
	}

	switch id {
	case game.ItemCoins:
		return ItemValue{Name: name, GEValue: qty, HAValue: qty, Quantity: qty}
	case game.ItemPlatinumToken:
		worth := qty * game.PlatinumTokenValue
		return ItemValue{Name: name, GEValue: worth, HAValue: worth, Quantity: qty}
	}

	var storePrice int
	if ok {
		storePrice = comp.Price
	}
	price, _ := a.prices.ItemPrice(id)

	return ItemValue{
		Name:     name,
		GEValue:  int64(price) * qty,
		HAValue:  game.HighAlchemyPrice(storePrice) * qty,
		Quantity: qty,
	}
}

// Measurements writes the valuation into GE, HA and quantity measurements
// for the given series. Quantity fields are only set for positive counts.
func (v Valuation) Measurements(geSeries, haSeries, countSeries types.Series) []types.Measurement {
	ge := types.NewMeasurementBuilder(geSeries)
	ha := types.NewMeasurementBuilder(haSeries)
	count := types.NewMeasurementBuilder(countSeries)

	for _, row := range v.Rows() {
		if row.Quantity > 0 {
			count.Int(row.Name, row.Quantity)
		}
		ge.Int(row.Name, row.GEValue)
		ha.Int(row.Name, row.HAValue)
	}

	return []types.Measurement{ge.Build(), ha.Build(), count.Build()}
}
