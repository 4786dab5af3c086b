// Package archive provides CaptureArchive implementations backed by memory
// and the local filesystem.
package archive

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/satriahrh/tractrelay/domain/entities"
	"github.com/satriahrh/tractrelay/domain/repositories"
)

// DefaultMemoryCapacity bounds the in-memory archive.
const DefaultMemoryCapacity = 100

// MemoryArchive keeps the most recent captures in memory. The oldest
// record is evicted once capacity is reached.
type MemoryArchive struct {
	mu       sync.RWMutex
	records  map[string]*entities.CaptureRecord // session_id -> record
	order    []string                           // insertion order, oldest first
	capacity int
}

var _ repositories.CaptureArchive = (*MemoryArchive)(nil)

// NewMemoryArchive creates a new in-memory archive
func NewMemoryArchive(capacity int) *MemoryArchive {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryArchive{
		records:  make(map[string]*entities.CaptureRecord),
		capacity: capacity,
	}
}

// Save implements repositories.CaptureArchive
func (m *MemoryArchive) Save(ctx context.Context, record *entities.CaptureRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.SessionID]; exists {
		return errors.New("capture for this session already exists")
	}

	if len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.records, oldest)
	}

	stored := *record
	m.records[record.SessionID] = &stored
	m.order = append(m.order, record.SessionID)
	return nil
}

// GetBySessionID implements repositories.CaptureArchive
func (m *MemoryArchive) GetBySessionID(ctx context.Context, sessionID string) (*entities.CaptureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[sessionID]
	if !exists {
		return nil, repositories.ErrCaptureNotFound
	}

	out := *record
	return &out, nil
}

// List implements repositories.CaptureArchive
func (m *MemoryArchive) List(ctx context.Context, limit int) ([]*entities.CaptureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entities.CaptureRecord, 0, len(m.records))
	for _, record := range m.records {
		r := *record
		out = append(out, &r)
	}
	sortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(records []*entities.CaptureRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
}
