package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// --------------------- MemStore ---------------------

type MemStore struct {
	mu          *sync.Mutex
	Collections map[string]map[string]Document
}

func NewMemStore() *MemStore {
	return &MemStore{
		mu:          &sync.Mutex{},
		Collections: make(map[string]map[string]Document),
	}
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (m *MemStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.Collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := col[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *MemStore) Set(ctx context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(collection, id, doc)
	return nil
}

func (m *MemStore) setLocked(collection, id string, doc Document) {
	col, ok := m.Collections[collection]
	if !ok {
		col = make(map[string]Document)
		m.Collections[collection] = col
	}
	col[id] = cloneDocument(doc)
}

func (m *MemStore) Merge(ctx context.Context, collection, id string, fields map[string]FieldValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeLocked(collection, id, fields)
}

func (m *MemStore) mergeLocked(collection, id string, fields map[string]FieldValue) error {
	col, ok := m.Collections[collection]
	if !ok {
		col = make(map[string]Document)
		m.Collections[collection] = col
	}

	doc, ok := col[id]
	if !ok {
		doc = make(Document)
		col[id] = doc
	}

	for name, f := range fields {
		if !f.IsIncrement() {
			doc[name] = f.SetValue()
			continue
		}

		prev, err := numericField(doc, name)
		if err != nil {
			return err
		}
		doc[name] = prev + f.IncrementBy()
	}

	return nil
}

func numericField(doc Document, name string) (float64, error) {
	v, ok := doc[name]
	if !ok {
		return 0, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field %q is not numeric", name)
	}
}

func (m *MemStore) Delete(ctx context.Context, collection, id string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if col, ok := m.Collections[collection]; ok {
		delete(col, id)
		if len(col) == 0 {
			delete(m.Collections, collection)
		}
	}

	if recursive {
		prefix := collection + "/" + id + "/"
		for name := range m.Collections {
			if strings.HasPrefix(name, prefix) {
				delete(m.Collections, name)
			}
		}
	}

	return nil
}

func (m *MemStore) List(ctx context.Context, collection string) (map[string]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Document)
	for id, doc := range m.Collections[collection] {
		out[id] = cloneDocument(doc)
	}
	return out, nil
}

func (m *MemStore) BatchWrite(ctx context.Context, ops []Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			m.setLocked(op.Collection, op.ID, op.Doc)
		case OpMerge:
			if err := m.mergeLocked(op.Collection, op.ID, op.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown batch operation %q", op.Kind)
		}
	}

	return nil
}

func (m *MemStore) Ping(ctx context.Context) error {
	return nil
}

// Snapshot возвращает копию всего содержимого хранилища для сохранения на диск.
func (m *MemStore) Snapshot() map[string]map[string]Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[string]Document, len(m.Collections))
	for name, col := range m.Collections {
		cc := make(map[string]Document, len(col))
		for id, doc := range col {
			cc[id] = cloneDocument(doc)
		}
		out[name] = cc
	}
	return out
}

// Restore заменяет содержимое хранилища данными из снимка.
func (m *MemStore) Restore(snapshot map[string]map[string]Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Collections = make(map[string]map[string]Document, len(snapshot))
	for name, col := range snapshot {
		cc := make(map[string]Document, len(col))
		for id, doc := range col {
			cc[id] = cloneDocument(doc)
		}
		m.Collections[name] = cc
	}
}
