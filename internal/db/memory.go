package db

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore is an in-process RecordStore. Records are kept bson-encoded so
// callers never share maps with the store.
type MemoryStore struct {
	mu       sync.Mutex
	colls    map[string]*memCollection
	counters map[string]int64
	now      func() time.Time
}

type memCollection struct {
	order []string
	docs  map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls:    make(map[string]*memCollection),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

func (s *MemoryStore) coll(name string) *memCollection {
	c, ok := s.colls[name]
	if !ok {
		c = &memCollection{docs: make(map[string][]byte)}
		s.colls[name] = c
	}
	return c
}

func encodeDoc(rec Record) ([]byte, error) {
	return bson.Marshal(map[string]interface{}(rec))
}

func decodeDoc(raw []byte) (Record, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return Record(m), nil
}

// ListRecords returns the records of collection in insertion order.
func (s *MemoryStore) ListRecords(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		rec, err := decodeDoc(c.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRecord returns a copy of the record with the given ID.
func (s *MemoryStore) GetRecord(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.coll(collection).docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeDoc(raw)
}

// CreateRecord stores a new record.
func (s *MemoryStore) CreateRecord(ctx context.Context, collection string, fields Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := make(Record, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	if rec.ID() == "" {
		rec[FieldID] = uuid.NewString()
	}
	if _, ok := rec[FieldCreatedAt]; !ok {
		rec[FieldCreatedAt] = s.now().UTC()
	}
	raw, err := encodeDoc(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	id := rec.ID()
	if _, exists := c.docs[id]; exists {
		return nil, ErrDuplicate
	}
	c.docs[id] = raw
	c.order = append(c.order, id)
	return decodeDoc(raw)
}

// UpdateRecord sets fields on an existing record.
func (s *MemoryStore) UpdateRecord(ctx context.Context, collection, id string, fields Record) (Record, error) {
	return s.UpdateRecordIf(ctx, collection, id, nil, fields)
}

// UpdateRecordIf sets fields when every match field equals the stored value.
func (s *MemoryStore) UpdateRecordIf(ctx context.Context, collection, id string, match, fields Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var want Record
	if len(match) > 0 {
		// Normalize through bson so typed values compare like stored ones.
		raw, err := encodeDoc(match)
		if err != nil {
			return nil, err
		}
		if want, err = decodeDoc(raw); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	raw, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	current, err := decodeDoc(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range want {
		if !reflect.DeepEqual(current[k], v) {
			return nil, ErrConflict
		}
	}
	for k, v := range withoutID(fields) {
		current[k] = v
	}
	updated, err := encodeDoc(current)
	if err != nil {
		return nil, err
	}
	c.docs[id] = updated
	return decodeDoc(updated)
}

// DeleteRecord removes a record.
func (s *MemoryStore) DeleteRecord(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// NextSequence increments and returns the named counter.
func (s *MemoryStore) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}
