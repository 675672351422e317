package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"

	"school-server-go/models"
)

// MemoryStore keeps records in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore[T any, PT models.Entity[T]] struct {
	mu     sync.RWMutex
	seq    uint
	docs   map[uint][]byte
	unique map[string]map[string]uint // column -> value -> id
}

// NewMemoryStore creates an empty store enforcing uniqueness on the given columns.
func NewMemoryStore[T any, PT models.Entity[T]](unique ...string) *MemoryStore[T, PT] {
	m := &MemoryStore[T, PT]{
		docs:   make(map[uint][]byte),
		unique: make(map[string]map[string]uint, len(unique)),
	}
	for _, col := range unique {
		m.unique[col] = make(map[string]uint)
	}
	return m
}

func (m *MemoryStore[T, PT]) FindBy(_ context.Context, column string, value any) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.unique[column]; ok {
		v, ok := value.(string)
		if !ok {
			return nil, nil
		}
		id, ok := idx[v]
		if !ok {
			return nil, nil
		}
		return decodeDoc[T](m.docs[id])
	}
	for _, id := range m.ids() {
		rec, err := decodeDoc[T](m.docs[id])
		if err != nil {
			return nil, err
		}
		if PT(rec).Columns()[column] == value {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore[T, PT]) List(_ context.Context, column, pattern string) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []T{}
	for _, id := range m.ids() {
		rec, err := decodeDoc[T](m.docs[id])
		if err != nil {
			return nil, err
		}
		if columnMatches(PT(rec).Columns(), column, pattern) {
			result = append(result, *rec)
		}
	}
	return result, nil
}

func (m *MemoryStore[T, PT]) Get(_ context.Context, id string) (*T, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[uint(n)]
	if !ok {
		return nil, nil
	}
	return decodeDoc[T](raw)
}

func (m *MemoryStore[T, PT]) Create(_ context.Context, rec *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	columns := PT(rec).Columns()
	for col, idx := range m.unique {
		if v, ok := columns[col].(string); ok {
			if _, taken := idx[v]; taken {
				return errors.NewAlreadyExists(nil, fmt.Sprintf("%s %q already exists", col, v))
			}
		}
	}

	m.seq++
	PT(rec).SetPrimaryKey(m.seq)
	raw, err := encodeDoc(rec, time.Now().UTC(), true)
	if err != nil {
		return err
	}
	m.docs[m.seq] = raw
	for col, idx := range m.unique {
		if v, ok := columns[col].(string); ok {
			idx[v] = m.seq
		}
	}
	stored, err := decodeDoc[T](raw)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

func (m *MemoryStore[T, PT]) Update(_ context.Context, id string, values map[string]any) error {
	n, ok := parseID(id)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[uint(n)]
	if !ok {
		return nil
	}
	current, err := decodeDoc[T](raw)
	if err != nil {
		return err
	}
	old := PT(current).Columns()
	for col, idx := range m.unique {
		if v, ok := values[col].(string); ok && v != old[col] {
			if owner, taken := idx[v]; taken && owner != uint(n) {
				return errors.NewAlreadyExists(nil, fmt.Sprintf("%s %q already exists", col, v))
			}
		}
	}

	patched, err := patchDoc(raw, values, time.Now().UTC())
	if err != nil {
		return err
	}
	m.docs[uint(n)] = patched
	for col, idx := range m.unique {
		if _, touched := values[col]; !touched {
			continue
		}
		if v, ok := old[col].(string); ok {
			delete(idx, v)
		}
		if v, ok := values[col].(string); ok {
			idx[v] = uint(n)
		}
	}
	return nil
}

func (m *MemoryStore[T, PT]) Delete(_ context.Context, id string) (int64, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[uint(n)]
	if !ok {
		return 0, nil
	}
	rec, err := decodeDoc[T](raw)
	if err != nil {
		return 0, err
	}
	columns := PT(rec).Columns()
	for col, idx := range m.unique {
		if v, ok := columns[col].(string); ok {
			delete(idx, v)
		}
	}
	delete(m.docs, uint(n))
	return 1, nil
}

func (m *MemoryStore[T, PT]) Ping(context.Context) error {
	return nil
}

// ids returns the stored identifiers in ascending order. Callers hold mu.
func (m *MemoryStore[T, PT]) ids() []uint {
	ids := make([]uint, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sortByID(ids, func(id *uint) uint { return *id })
	return ids
}
