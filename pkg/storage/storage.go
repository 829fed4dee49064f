// Package storage is a local measurement sink backed by BadgerDB. Points are
// grouped into one-hour blocks per series; timestamps are delta-of-delta
// encoded and both columns are zstd compressed.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"github.com/vjranagit/tickstats/pkg/types"
)

const blockDuration = time.Hour

var (
	metaPrefix  = []byte("m/")
	blockPrefix = []byte("b/")
)

// Config holds storage configuration
type Config struct {
	Path string
	// Retention expires blocks after this long; 0 keeps them forever
	Retention        time.Duration
	CompressionLevel int
	InMemory         bool
	SyncWrites       bool
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		Path:             "./data",
		Retention:        30 * 24 * time.Hour,
		CompressionLevel: 3,
	}
}

// BadgerStore stores measurements in BadgerDB and answers range queries
type BadgerStore struct {
	cfg        Config
	db         *badger.DB
	index      *Index
	compressor *Compressor
	logger     logr.Logger
	mu         sync.RWMutex
}

// NewStorage opens the store and rebuilds the series index from persisted
// metadata
func NewStorage(cfg Config, logger logr.Logger) (*BadgerStore, error) {
	logger = logger.WithName("storage")

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(newBadgerLogger(logger.WithName("badger")))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	s := &BadgerStore{
		cfg:        cfg,
		db:         db,
		index:      NewIndex(),
		compressor: compressor,
		logger:     logger,
	}

	if err := s.loadIndex(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	logger.Info("storage opened", "path", cfg.Path, "inMemory", cfg.InMemory, "series", s.index.SeriesCount())
	return s, nil
}

// seriesRecord is the persisted form of a series
type seriesRecord struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags,omitempty"`
}

type blockPayload struct {
	Count      int    `json:"count"`
	Timestamps []byte `json:"ts"`
	Fields     []byte `json:"fields"`
}

type blockRef struct {
	series uint64
	start  int64
}

type storedPoint struct {
	ts     int64
	fields []types.Field
}

// loadIndex reads every series record and the key range of its blocks
func (s *BadgerStore) loadIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		if err := s.loadSeries(txn); err != nil {
			return err
		}
		s.loadBlockRanges(txn)
		return nil
	})
}

func (s *BadgerStore) loadSeries(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = metaPrefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var rec seriesRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		s.index.AddSeries(types.NewSeries(rec.Name, rec.Tags))
	}
	return nil
}

func (s *BadgerStore) loadBlockRanges(txn *badger.Txn) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = blockPrefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		ref, ok := parseBlockKey(it.Item().Key())
		if !ok {
			continue
		}
		start := time.Unix(ref.start, 0)
		s.index.UpdateTimeRange(ref.series, start.UnixNano(), start.Add(blockDuration).UnixNano()-1)
	}
}

// Write stores a batch. Points landing in an existing block are merged into
// it; a point with the same timestamp as a stored one replaces it.
func (s *BadgerStore) Write(ctx context.Context, batch []types.Measurement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		refs      []blockRef
		grouped   = make(map[blockRef][]storedPoint)
		newSeries = make(map[uint64]types.Series)
	)
	for _, m := range batch {
		fp := m.Series().Fingerprint()
		if _, ok := s.index.GetSeries(fp); !ok {
			newSeries[fp] = m.Series()
		}

		ts := m.Time()
		if ts.IsZero() {
			ts = time.Now()
		}
		ref := blockRef{series: fp, start: ts.Truncate(blockDuration).Unix()}
		if _, ok := grouped[ref]; !ok {
			refs = append(refs, ref)
		}
		grouped[ref] = append(grouped[ref], storedPoint{ts: ts.UnixNano(), fields: m.Fields()})
	}

	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	set := func(e *badger.Entry) error {
		err := txn.SetEntry(e)
		if !errors.Is(err, badger.ErrTxnTooBig) {
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		txn = s.db.NewTransaction(true)
		return txn.SetEntry(e)
	}

	for fp, series := range newSeries {
		val, err := json.Marshal(seriesRecord{Name: series.Name(), Tags: series.Tags()})
		if err != nil {
			return fmt.Errorf("failed to marshal series: %w", err)
		}
		if err := set(badger.NewEntry(metaKey(fp), val)); err != nil {
			return fmt.Errorf("failed to write series %s: %w", series, err)
		}
	}

	for _, ref := range refs {
		existing, err := s.readBlock(txn, ref)
		if err != nil {
			return fmt.Errorf("failed to read block: %w", err)
		}

		val, err := s.encodeBlock(mergePoints(existing, grouped[ref]))
		if err != nil {
			return err
		}

		e := badger.NewEntry(blockKey(ref), val)
		if s.cfg.Retention > 0 {
			e = e.WithTTL(s.cfg.Retention)
		}
		if err := set(e); err != nil {
			return fmt.Errorf("failed to write block: %w", err)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	for _, series := range newSeries {
		s.index.AddSeries(series)
	}
	for _, ref := range refs {
		points := grouped[ref]
		lo, hi := points[0].ts, points[0].ts
		for _, p := range points[1:] {
			lo = min(lo, p.ts)
			hi = max(hi, p.ts)
		}
		s.index.UpdateTimeRange(ref.series, lo, hi)
	}

	return nil
}

// mergePoints orders points by time; for equal timestamps the newer point
// wins
func mergePoints(existing, incoming []storedPoint) []storedPoint {
	all := append(existing, incoming...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ts < all[j].ts })

	out := all[:0]
	for _, p := range all {
		if n := len(out); n > 0 && out[n-1].ts == p.ts {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *BadgerStore) encodeBlock(points []storedPoint) ([]byte, error) {
	timestamps := make([]int64, len(points))
	rows := make([][]types.Field, len(points))
	for i, p := range points {
		timestamps[i] = p.ts
		rows[i] = p.fields
	}

	fields, err := s.compressor.CompressFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to compress fields: %w", err)
	}

	payload, err := json.Marshal(blockPayload{
		Count:      len(points),
		Timestamps: s.compressor.CompressTimestamps(timestamps),
		Fields:     fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return payload, nil
}

func (s *BadgerStore) decodeBlock(val []byte) ([]storedPoint, error) {
	var payload blockPayload
	if err := json.Unmarshal(val, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	timestamps, err := s.compressor.DecompressTimestamps(payload.Timestamps, payload.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress timestamps: %w", err)
	}

	rows, err := s.compressor.DecompressFields(payload.Fields, payload.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress fields: %w", err)
	}

	points := make([]storedPoint, payload.Count)
	for i := range points {
		points[i] = storedPoint{ts: timestamps[i], fields: rows[i]}
	}
	return points, nil
}

// readBlock returns the stored points of a block, or nil if it does not exist
func (s *BadgerStore) readBlock(txn *badger.Txn, ref blockRef) ([]storedPoint, error) {
	item, err := txn.Get(blockKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var points []storedPoint
	err = item.Value(func(val []byte) error {
		points, err = s.decodeBlock(val)
		return err
	})
	return points, err
}

// Query returns the points of every series matching req.Name and req.Tags
// within [StartTime, EndTime]. A zero bound leaves that side open.
func (s *BadgerStore) Query(ctx context.Context, req types.QueryRequest) (*types.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := int64(0), int64(1<<63-1)
	if !req.StartTime.IsZero() {
		start = req.StartTime.UnixNano()
	}
	if !req.EndTime.IsZero() {
		end = req.EndTime.UnixNano()
	}
	if start > end {
		return nil, fmt.Errorf("start time %s is after end time %s", req.StartTime, req.EndTime)
	}

	var metas []*seriesMetadata
	for _, id := range s.index.FindSeries(req.Name, req.Tags) {
		meta, ok := s.index.GetSeries(id)
		if !ok || meta.MaxTime < start || meta.MinTime > end {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Series.Key() < metas[j].Series.Key() })

	result := &types.QueryResult{Series: make([]types.SeriesPoints, 0, len(metas))}

	err := s.db.View(func(txn *badger.Txn) error {
		for _, meta := range metas {
			if err := ctx.Err(); err != nil {
				return err
			}

			points, err := s.scanSeries(txn, meta.ID, start, end)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				continue
			}

			result.Series = append(result.Series, types.SeriesPoints{
				Name:   meta.Series.Name(),
				Tags:   meta.Series.Tags(),
				Points: points,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// scanSeries walks the blocks of one series overlapping [start, end]
func (s *BadgerStore) scanSeries(txn *badger.Txn, id uint64, start, end int64) ([]types.Point, error) {
	prefix := seriesBlockPrefix(id)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	firstBlock := time.Unix(0, start).Truncate(blockDuration).Unix()
	lastBlock := time.Unix(0, end).Truncate(blockDuration).Unix()

	var points []types.Point
	for it.Seek(blockKey(blockRef{series: id, start: firstBlock})); it.ValidForPrefix(prefix); it.Next() {
		ref, ok := parseBlockKey(it.Item().Key())
		if !ok {
			continue
		}
		if ref.start > lastBlock {
			break
		}

		var stored []storedPoint
		err := it.Item().Value(func(val []byte) error {
			var err error
			stored, err = s.decodeBlock(val)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read block: %w", err)
		}

		for _, p := range stored {
			if p.ts < start || p.ts > end {
				continue
			}
			fields := make(map[string]any, len(p.fields))
			for _, f := range p.fields {
				fields[f.Key] = f.Value.Interface()
			}
			points = append(points, types.Point{Timestamp: time.Unix(0, p.ts).UTC(), Fields: fields})
		}
	}

	return points, nil
}

// SeriesCount returns the number of stored series
func (s *BadgerStore) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.SeriesCount()
}

// RunGC periodically reclaims value log space freed by expired blocks until
// ctx is cancelled
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.V(1).Info("value log GC stopped", "error", err.Error())
					}
					break
				}
			}
		}
	}
}

// Close closes the storage
func (s *BadgerStore) Close() error {
	s.compressor.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func metaKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), metaPrefix...), id)
}

func seriesBlockPrefix(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), blockPrefix...), id)
}

// blockKey sorts blocks of a series by start time; block starts are
// non-negative unix seconds
func blockKey(ref blockRef) []byte {
	return binary.BigEndian.AppendUint64(seriesBlockPrefix(ref.series), uint64(ref.start))
}

func parseBlockKey(key []byte) (blockRef, bool) {
	if len(key) != len(blockPrefix)+16 {
		return blockRef{}, false
	}
	key = key[len(blockPrefix):]
	return blockRef{
		series: binary.BigEndian.Uint64(key[:8]),
		start:  int64(binary.BigEndian.Uint64(key[8:])),
	}, true
}
