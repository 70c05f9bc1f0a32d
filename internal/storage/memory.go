package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// MemoryLog is a scraping log held by a MemorySink.
type MemoryLog struct {
	ID          int64
	StoreID     int64
	NaverID     string
	Status      string
	MenuCount   int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

type storeKey struct {
	storeID int64
	naverID string
}

// MemorySink keeps everything in memory with the same keying as Postgres.
// It backs dry runs and tests.
type MemorySink struct {
	mu     sync.Mutex
	nextID int64
	logs   map[int64]*MemoryLog
	menus  map[storeKey]map[string]menu.Record
	order  map[storeKey][]string
	stats  map[storeKey]menu.Stats
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		logs:  make(map[int64]*MemoryLog),
		menus: make(map[storeKey]map[string]menu.Record),
		order: make(map[storeKey][]string),
		stats: make(map[storeKey]menu.Stats),
	}
}

// StartLog records a pending log.
func (m *MemorySink) StartLog(_ context.Context, storeID int64, naverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.logs[m.nextID] = &MemoryLog{
		ID:        m.nextID,
		StoreID:   storeID,
		NaverID:   naverID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	return m.nextID, nil
}

// SaveMenus upserts records by name.
func (m *MemorySink) SaveMenus(_ context.Context, storeID int64, naverID string, records []menu.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeKey{storeID, naverID}
	rows, ok := m.menus[key]
	if !ok {
		rows = make(map[string]menu.Record)
		m.menus[key] = rows
	}
	for _, r := range records {
		if _, exists := rows[r.Name]; !exists {
			m.order[key] = append(m.order[key], r.Name)
		}
		rows[r.Name] = r
	}
	return len(records), nil
}

// SaveStats replaces the statistics of a store.
func (m *MemorySink) SaveStats(_ context.Context, storeID int64, naverID string, stats menu.Stats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats[storeKey{storeID, naverID}] = stats
	return nil
}

// CompleteLog closes a log.
func (m *MemorySink) CompleteLog(_ context.Context, logID int64, menuCount int, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[logID]
	if !ok {
		return fmt.Errorf("memory: complete log %d: %w", logID, ErrUnknownLog)
	}
	l.Status = StatusFailed
	if success {
		l.Status = StatusSuccess
	}
	l.MenuCount = menuCount
	l.Error = errMsg
	l.CompletedAt = time.Now()
	return nil
}

// Close is a no-op.
func (m *MemorySink) Close() error { return nil }

// Menus returns the stored records of a store in first-insert order.
func (m *MemorySink) Menus(storeID int64, naverID string) []menu.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeKey{storeID, naverID}
	out := make([]menu.Record, 0, len(m.order[key]))
	for _, name := range m.order[key] {
		out = append(out, m.menus[key][name])
	}
	return out
}

// Stats returns the stored statistics of a store.
func (m *MemorySink) Stats(storeID int64, naverID string) (menu.Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[storeKey{storeID, naverID}]
	return s, ok
}

// Log returns a copy of a log entry.
func (m *MemorySink) Log(id int64) (MemoryLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[id]
	if !ok {
		return MemoryLog{}, false
	}
	return *l, true
}

// Logs returns copies of every log entry in id order.
func (m *MemorySink) Logs() []MemoryLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MemoryLog, 0, len(m.logs))
	for id := int64(1); id <= m.nextID; id++ {
		if l, ok := m.logs[id]; ok {
			out = append(out, *l)
		}
	}
	return out
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*Postgres)(nil)
)
