package host

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vjranagit/tickstats/pkg/game"
)

// ItemEntry describes one item in the database
type ItemEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// StorePrice is the general store price used for high alchemy
	StorePrice  int `json:"store_price"`
	MarketPrice int `json:"market_price"`
	// CanonicalID points noted or placeholder variants at their base item
	CanonicalID int `json:"canonical_id,omitempty"`
}

// ItemDB is an in-memory item database
type ItemDB struct {
	mu    sync.RWMutex
	items map[int]ItemEntry
}

// NewItemDB creates an item database from entries
func NewItemDB(entries ...ItemEntry) *ItemDB {
	db := &ItemDB{items: make(map[int]ItemEntry, len(entries))}
	for _, e := range entries {
		db.items[e.ID] = e
	}
	return db
}

// LoadItemDB reads a JSON array of item entries
func LoadItemDB(path string) (*ItemDB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read item database: %w", err)
	}

	var entries []ItemEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse item database: %w", err)
	}

	return NewItemDB(entries...), nil
}

// Put adds or replaces an entry
func (db *ItemDB) Put(e ItemEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.items[e.ID] = e
}

// Len returns the number of entries
func (db *ItemDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.items)
}

// Canonicalize implements valuation.PriceSource
func (db *ItemDB) Canonicalize(id int) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if e, ok := db.items[id]; ok && e.CanonicalID > 0 {
		return e.CanonicalID
	}
	return id
}

// ItemComposition implements valuation.PriceSource
func (db *ItemDB) ItemComposition(id int) (game.ItemComposition, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, ok := db.items[id]
	if !ok {
		return game.ItemComposition{}, false
	}
	return game.ItemComposition{ID: e.ID, Name: e.Name, Price: e.StorePrice}, true
}

// ItemPrice implements valuation.PriceSource
func (db *ItemDB) ItemPrice(id int) (int, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, ok := db.items[id]
	if !ok {
		return 0, false
	}
	return e.MarketPrice, true
}
