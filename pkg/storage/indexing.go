package storage

import (
	"sort"

	"github.com/vjranagit/tickstats/pkg/types"
)

// nameLabel indexes the measurement name alongside the tags
const nameLabel = "__name__"

// Index is the in-memory series index: fingerprint to metadata, plus an
// inverted index from tag key and value to fingerprints
type Index struct {
	series     map[uint64]*seriesMetadata
	labelIndex map[string]map[string][]uint64
}

// seriesMetadata holds metadata about a single series
type seriesMetadata struct {
	ID      uint64
	Series  types.Series
	MinTime int64
	MaxTime int64
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		series:     make(map[uint64]*seriesMetadata),
		labelIndex: make(map[string]map[string][]uint64),
	}
}

// AddSeries indexes s and returns its fingerprint. added is false when the
// series was already known.
func (idx *Index) AddSeries(s types.Series) (id uint64, added bool) {
	fingerprint := s.Fingerprint()
	if _, exists := idx.series[fingerprint]; exists {
		return fingerprint, false
	}

	idx.series[fingerprint] = &seriesMetadata{ID: fingerprint, Series: s}

	idx.addLabel(nameLabel, s.Name(), fingerprint)
	for _, t := range s.SortedTags() {
		idx.addLabel(t.Key, t.Value, fingerprint)
	}

	return fingerprint, true
}

func (idx *Index) addLabel(name, value string, id uint64) {
	if idx.labelIndex[name] == nil {
		idx.labelIndex[name] = make(map[string][]uint64)
	}
	idx.labelIndex[name][value] = append(idx.labelIndex[name][value], id)
}

// GetSeries retrieves series metadata by ID
func (idx *Index) GetSeries(id uint64) (*seriesMetadata, bool) {
	meta, ok := idx.series[id]
	return meta, ok
}

// FindSeries returns the series with the given name carrying every tag in
// tags. An empty name matches any name.
func (idx *Index) FindSeries(name string, tags map[string]string) []uint64 {
	selectors := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		selectors[k] = v
	}
	if name != "" {
		selectors[nameLabel] = name
	}

	if len(selectors) == 0 {
		result := make([]uint64, 0, len(idx.series))
		for id := range idx.series {
			result = append(result, id)
		}
		return result
	}

	var result []uint64
	first := true

	for labelName, labelValue := range selectors {
		ids, ok := idx.labelIndex[labelName][labelValue]
		if !ok {
			return nil
		}

		if first {
			result = append([]uint64(nil), ids...)
			first = false
		} else {
			result = intersect(result, ids)
		}

		if len(result) == 0 {
			return nil
		}
	}

	return result
}

// UpdateTimeRange widens the known time range of a series
func (idx *Index) UpdateTimeRange(id uint64, minTime, maxTime int64) bool {
	meta, ok := idx.series[id]
	if !ok {
		return false
	}

	if meta.MinTime == 0 || minTime < meta.MinTime {
		meta.MinTime = minTime
	}
	if meta.MaxTime == 0 || maxTime > meta.MaxTime {
		meta.MaxTime = maxTime
	}
	return true
}

// SeriesCount returns the number of indexed series
func (idx *Index) SeriesCount() int {
	return len(idx.series)
}

// intersect finds common elements in two slices
func intersect(a, b []uint64) []uint64 {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	b = append([]uint64(nil), b...)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })

	result := make([]uint64, 0)
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
