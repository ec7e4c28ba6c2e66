package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/storage"
)

// BadgerStore keeps the record under one key of an embedded KV engine.
// Several origins can share one database by using distinct keys.
type BadgerStore struct {
	kv  storage.KVEngine
	key []byte
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore returns a store writing key into kv.
func NewBadgerStore(kv storage.KVEngine, key string) *BadgerStore {
	if key == "" {
		key = domain.DefaultStorageKey
	}
	return &BadgerStore{kv: kv, key: []byte(key)}
}

// Load implements Store.
func (b *BadgerStore) Load(ctx context.Context) (*domain.PersistedRecord, error) {
	data, err := b.kv.Get(ctx, b.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return domain.UnmarshalRecord(data)
}

// Save implements Store.
func (b *BadgerStore) Save(ctx context.Context, rec *domain.PersistedRecord) error {
	data, err := domain.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if err := b.kv.Set(ctx, b.key, data); err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(ctx context.Context) error {
	if err := b.kv.Delete(ctx, b.key); err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}
