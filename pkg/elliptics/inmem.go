package elliptics

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Inmem is an in-process storage driver backing the dev agent and the
// test suites. Data is scoped per group the way the real fleet scopes
// it: a write through a session bound to groups 1 and 2 lands in both
// group stores, a read takes the first bound group holding the key.
type Inmem struct {
	mu sync.RWMutex

	data map[int]map[string][]byte
	rows []StatRow

	writeErrs map[int]error
	readErrs  map[int]error
	statErr   error
}

// NewInmem returns an empty in-process driver.
func NewInmem() *Inmem {
	return &Inmem{
		data:      make(map[int]map[string][]byte),
		writeErrs: make(map[int]error),
		readErrs:  make(map[int]error),
	}
}

func (m *Inmem) NewSession() Session {
	return &inmemSession{client: m}
}

func (m *Inmem) Close() error {
	return nil
}

// SetStatRows installs the counter rows served by stat log requests.
func (m *Inmem) SetStatRows(rows []StatRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

// SetStatError makes stat log requests fail until cleared with nil.
func (m *Inmem) SetStatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErr = err
}

// SetWriteError makes writes and removes touching a group fail until
// cleared with nil.
func (m *Inmem) SetWriteError(groupID int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.writeErrs, groupID)
		return
	}
	m.writeErrs[groupID] = err
}

// SetReadError makes reads touching a group fail until cleared with
// nil.
func (m *Inmem) SetReadError(groupID int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readErrs, groupID)
		return
	}
	m.readErrs[groupID] = err
}

// PutGroupBlob stores a blob directly into one group's store.
func (m *Inmem) PutGroupBlob(groupID int, key string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(groupID, key, blob)
}

// GroupBlob returns the blob stored under key in one group.
func (m *Inmem) GroupBlob(groupID int, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.data[groupID][key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, true
}

func (m *Inmem) put(groupID int, key string, blob []byte) {
	store, ok := m.data[groupID]
	if !ok {
		store = make(map[string][]byte)
		m.data[groupID] = store
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	store[key] = stored
}

type inmemSession struct {
	client  *Inmem
	groups  []int
	timeout time.Duration
}

func (s *inmemSession) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

func (s *inmemSession) AddGroups(ids []int) {
	s.groups = append(s.groups, ids...)
}

func (s *inmemSession) ReadData(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.groups) == 0 {
		return nil, fmt.Errorf("session has no groups")
	}

	m := s.client
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, gid := range s.groups {
		if err := m.readErrs[gid]; err != nil {
			return nil, err
		}
		if blob, ok := m.data[gid][key]; ok {
			out := make([]byte, len(blob))
			copy(out, blob)
			return out, nil
		}
	}
	return nil, fmt.Errorf("key %q in groups %v: %w", key, s.groups, ErrNotFound)
}

func (s *inmemSession) WriteData(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.groups) == 0 {
		return fmt.Errorf("session has no groups")
	}

	m := s.client
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, gid := range s.groups {
		if err := m.writeErrs[gid]; err != nil {
			return err
		}
		m.put(gid, key, data)
	}
	return nil
}

func (s *inmemSession) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.client
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, gid := range s.groups {
		if err := m.writeErrs[gid]; err != nil {
			return err
		}
		delete(m.data[gid], key)
	}
	return nil
}

func (s *inmemSession) LookupAddr(ctx context.Context, key string, groupID int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := s.client
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, row := range m.rows {
		if row.GroupID == groupID {
			return row.Addr, nil
		}
	}
	return "", fmt.Errorf("group %d: %w", groupID, ErrNotFound)
}

func (s *inmemSession) StatLogCount(ctx context.Context) ([]StatRow, error) {
	return s.statRows(ctx)
}

func (s *inmemSession) StatLog(ctx context.Context) ([]StatRow, error) {
	return s.statRows(ctx)
}

func (s *inmemSession) statRows(ctx context.Context) ([]StatRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.client
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.statErr != nil {
		return nil, m.statErr
	}
	out := make([]StatRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}
