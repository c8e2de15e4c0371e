package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps records in a BoltDB file. Records live in one bucket keyed by
// prediction id; a second bucket indexes them by timestamp so listings can walk
// newest-first with a cursor.
type BoltStore struct {
	db          *bbolt.DB
	records     []byte
	byTimestamp []byte
}

// NewBoltStore opens (or creates) predictions.db inside dir.
func NewBoltStore(dir, collection string) (*BoltStore, error) {
	dbPath := filepath.Join(dir, "predictions.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BoltStore{
		db:          db,
		records:     []byte(collection),
		byTimestamp: []byte(collection + "_by_timestamp"),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.records); err != nil {
			return fmt.Errorf("create %s bucket: %w", s.records, err)
		}
		if _, err := tx.CreateBucketIfNotExists(s.byTimestamp); err != nil {
			return fmt.Errorf("create %s bucket: %w", s.byTimestamp, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database file. Closing twice is allowed.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// indexKey sorts by timestamp, then id for records sharing a timestamp.
func indexKey(ts time.Time, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(ts.UnixNano()))
	return append(key, id...)
}

func (s *BoltStore) Insert(ctx context.Context, rec Record) (string, error) {
	prepareInsert(&rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal prediction: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.records)
		id := []byte(rec.PredictionID)

		if prev := b.Get(id); prev != nil {
			return fmt.Errorf("prediction %s already exists", rec.PredictionID)
		}
		if err := b.Put(id, data); err != nil {
			return err
		}
		return tx.Bucket(s.byTimestamp).Put(indexKey(rec.Timestamp, rec.PredictionID), id)
	})
	if err != nil {
		return "", fmt.Errorf("insert prediction: %w", err)
	}
	return rec.PredictionID, nil
}

func (s *BoltStore) FindByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.records).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// scan walks records newest first and stops when visit returns false.
func (s *BoltStore) scan(tx *bbolt.Tx, visit func(Record) bool) error {
	records := tx.Bucket(s.records)
	c := tx.Bucket(s.byTimestamp).Cursor()

	for k, id := c.Last(); k != nil; k, id = c.Prev() {
		data := records.Get(id)
		if data == nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue // Skip malformed records
		}
		if !visit(rec) {
			return nil
		}
	}
	return nil
}

func (s *BoltStore) collect(limit, skip int, match func(Record) bool) ([]Record, error) {
	out := make([]Record, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.scan(tx, func(rec Record) bool {
			if !match(rec) {
				return true
			}
			if skip > 0 {
				skip--
				return true
			}
			out = append(out, rec)
			return limit <= 0 || len(out) < limit
		})
	})
	return out, err
}

func (s *BoltStore) FindAll(ctx context.Context, limit, skip int) ([]Record, error) {
	return s.collect(limit, skip, func(Record) bool { return true })
}

func (s *BoltStore) FindByCompany(ctx context.Context, company string, limit int) ([]Record, error) {
	return s.collect(limit, 0, func(r Record) bool { return r.InputFeatures.Company == company })
}

func (s *BoltStore) FindByPriceRange(ctx context.Context, minPrice, maxPrice float64, limit int) ([]Record, error) {
	return s.collect(limit, 0, func(r Record) bool {
		return r.OutputPrediction >= minPrice && r.OutputPrediction <= maxPrice
	})
}

func (s *BoltStore) Update(ctx context.Context, id string, upd RecordUpdate) (*Record, error) {
	var rec Record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.records)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshal prediction: %w", err)
		}

		upd.apply(&rec, time.Now().UTC())

		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// remove deletes a record and its index entry inside tx.
func (s *BoltStore) remove(tx *bbolt.Tx, rec Record) error {
	if err := tx.Bucket(s.byTimestamp).Delete(indexKey(rec.Timestamp, rec.PredictionID)); err != nil {
		return err
	}
	return tx.Bucket(s.records).Delete([]byte(rec.PredictionID))
}

func (s *BoltStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.records).Get([]byte(id))
		if data == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// without a timestamp the index entry cannot be located; drop the record anyway
			deleted = true
			return tx.Bucket(s.records).Delete([]byte(id))
		}
		deleted = true
		return s.remove(tx, rec)
	})
	return deleted, err
}

func (s *BoltStore) deleteMatching(match func(Record) bool) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var victims []Record
		if err := s.scan(tx, func(rec Record) bool {
			if match(rec) {
				victims = append(victims, rec)
			}
			return true
		}); err != nil {
			return err
		}

		// bbolt cursors must not be mutated while iterating
		for _, rec := range victims {
			if err := s.remove(tx, rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BoltStore) DeleteByCompany(ctx context.Context, company string) (int, error) {
	return s.deleteMatching(func(r Record) bool { return r.InputFeatures.Company == company })
}

func (s *BoltStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(s.byTimestamp)
		records := tx.Bucket(s.records)
		limit := indexKey(cutoff, "")

		var keys, ids [][]byte
		c := idx.Cursor()
		for k, id := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, id = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
			ids = append(ids, append([]byte(nil), id...))
		}

		for i := range keys {
			if err := idx.Delete(keys[i]); err != nil {
				return err
			}
			if err := records.Delete(ids[i]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(s.records).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) CompanyStats(ctx context.Context) ([]CompanyStats, error) {
	agg := newAggregator()
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.scan(tx, func(rec Record) bool {
			agg.add(rec.InputFeatures.Company, rec.OutputPrediction)
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return agg.companies(), nil
}

func (s *BoltStore) PriceStats(ctx context.Context) (PriceStats, error) {
	agg := newAggregator()
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.scan(tx, func(rec Record) bool {
			agg.add(rec.InputFeatures.Company, rec.OutputPrediction)
			return true
		})
	})
	if err != nil {
		return PriceStats{}, err
	}
	return agg.overall(), nil
}
