package collection

import (
	"context"
	"slices"
	"sync"
)

// ArrayBackend armazena os registros em memória, em ordem de inserção.
type ArrayBackend struct {
	mu       sync.RWMutex
	identity string
	records  []Record
	initial  []Record
	ids      *IdGenerator
}

var _ Backend = (*ArrayBackend)(nil)

// NewArrayBackend copia records (cópia profunda) para o armazenamento e
// para o snapshot usado por Reset.
func NewArrayBackend(records []Record, identity string) *ArrayBackend {
	if identity == "" {
		identity = DefaultIdentity
	}
	b := &ArrayBackend{
		identity: identity,
		initial:  cloneRecords(records),
	}
	b.records = cloneRecords(b.initial)
	b.ids = NewIdGenerator(b.records, identity)
	return b
}

// NewArrayCollection cria um Collection em memória.
func NewArrayCollection(records []Record, opts ...Option) *Collection {
	o := buildOptions(opts)
	return New(NewArrayBackend(records, o.identity), opts...)
}

func (b *ArrayBackend) Identity() string { return b.identity }

// IsInitialized retorna imediatamente; não há carga assíncrona.
func (b *ArrayBackend) IsInitialized(ctx context.Context) error { return nil }

// Reset restaura o snapshot inicial e recria o gerador a partir dele.
func (b *ArrayBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = cloneRecords(b.initial)
	b.ids = NewIdGenerator(b.records, b.identity)
	return nil
}

// Clear remove todos os registros. O gerador segue de onde estava, então
// identidades já emitidas não são reaproveitadas.
func (b *ArrayBackend) Clear(ctx context.Context) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := b.records
	b.records = []Record{}
	return removed, nil
}

func (b *ArrayBackend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records), nil
}

func (b *ArrayBackend) Find(ctx context.Context, q Query) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(q) == 0 {
		return cloneRecords(b.records), nil
	}
	return cloneRecords(Filter(b.records, q)), nil
}

func (b *ArrayBackend) FindOne(ctx context.Context, c Criteria) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	idx := c.locate(b.records, b.identity)
	if idx < 0 {
		return nil, false, nil
	}
	return b.records[idx].Clone(), true, nil
}

func (b *ArrayBackend) PerformInsert(ctx context.Context, r Record) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := r.Clone()
	if stored == nil {
		stored = Record{}
	}
	if stored[b.identity] == nil {
		stored[b.identity] = b.ids.Next()
	}
	b.records = append(b.records, stored)
	return stored.Clone(), nil
}

func (b *ArrayBackend) PerformUpdateOne(ctx context.Context, c Criteria, patch Record) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := c.locate(b.records, b.identity)
	if idx < 0 {
		return nil, false, nil
	}

	original := b.records[idx]
	updated := original.Merge(patch)
	updated[b.identity] = original[b.identity]
	b.records[idx] = updated
	return updated.Clone(), true, nil
}

func (b *ArrayBackend) PerformDeleteOne(ctx context.Context, c Criteria) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := c.locate(b.records, b.identity)
	if idx < 0 {
		return nil, false, nil
	}

	removed := b.records[idx]
	b.records = slices.Delete(b.records, idx, idx+1)
	return removed, true, nil
}
