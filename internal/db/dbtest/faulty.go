// Package dbtest provides RecordStore doubles for tests.
package dbtest

import (
	"context"
	"sync"

	"github.com/ukydev/trip-approvals/internal/db"
)

// Store operation names accepted by FaultyStore.Fail.
const (
	OpList     = "list"
	OpGet      = "get"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpUpdateIf = "update_if"
	OpDelete   = "delete"
	OpSequence = "sequence"
)

// FaultyStore wraps a RecordStore and fails selected operations.
type FaultyStore struct {
	db.RecordStore

	mu    sync.Mutex
	fails map[string]error
	calls map[string]int
	// BeforeUpdateIf runs before every conditional update, letting tests
	// interleave a concurrent writer.
	BeforeUpdateIf func(ctx context.Context, collection, id string)
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner db.RecordStore) *FaultyStore {
	return &FaultyStore{RecordStore: inner, fails: map[string]error{}, calls: map[string]int{}}
}

// Fail makes op on collection return err until cleared with a nil err.
func (f *FaultyStore) Fail(op, collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + collection
	if err == nil {
		delete(f.fails, key)
		return
	}
	f.fails[key] = err
}

// Calls reports how many times op ran on collection.
func (f *FaultyStore) Calls(op, collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+collection]
}

func (f *FaultyStore) check(op, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + collection
	f.calls[key]++
	return f.fails[key]
}

func (f *FaultyStore) ListRecords(ctx context.Context, collection string) ([]db.Record, error) {
	if err := f.check(OpList, collection); err != nil {
		return nil, err
	}
	return f.RecordStore.ListRecords(ctx, collection)
}

func (f *FaultyStore) GetRecord(ctx context.Context, collection, id string) (db.Record, error) {
	if err := f.check(OpGet, collection); err != nil {
		return nil, err
	}
	return f.RecordStore.GetRecord(ctx, collection, id)
}

func (f *FaultyStore) CreateRecord(ctx context.Context, collection string, fields db.Record) (db.Record, error) {
	if err := f.check(OpCreate, collection); err != nil {
		return nil, err
	}
	return f.RecordStore.CreateRecord(ctx, collection, fields)
}

func (f *FaultyStore) UpdateRecord(ctx context.Context, collection, id string, fields db.Record) (db.Record, error) {
	if err := f.check(OpUpdate, collection); err != nil {
		return nil, err
	}
	return f.RecordStore.UpdateRecord(ctx, collection, id, fields)
}

func (f *FaultyStore) UpdateRecordIf(ctx context.Context, collection, id string, match, fields db.Record) (db.Record, error) {
	if f.BeforeUpdateIf != nil {
		f.BeforeUpdateIf(ctx, collection, id)
	}
	if err := f.check(OpUpdateIf, collection); err != nil {
		return nil, err
	}
	return f.RecordStore.UpdateRecordIf(ctx, collection, id, match, fields)
}

func (f *FaultyStore) DeleteRecord(ctx context.Context, collection, id string) error {
	if err := f.check(OpDelete, collection); err != nil {
		return err
	}
	return f.RecordStore.DeleteRecord(ctx, collection, id)
}

func (f *FaultyStore) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := f.check(OpSequence, name); err != nil {
		return 0, err
	}
	return f.RecordStore.NextSequence(ctx, name)
}
