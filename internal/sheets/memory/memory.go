package memory

import (
	"context"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Mirror is an in-process RecordMirror used for local runs and tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[string][]string
}

var _ sheets.RecordMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[string][]string)}
}

func (m *Mirror) Upsert(_ context.Context, rec core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.ID] = sheets.Row(rec)
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(id string) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return append([]string(nil), row...), ok
}

// IDs lists mirrored record ids in sorted order.
func (m *Mirror) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
