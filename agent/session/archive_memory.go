package session

import (
	"context"
	"strings"
	"sync"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

// MemoryArchive keeps snapshots in process memory. Used for development and
// tests; snapshots do not survive a restart.
type MemoryArchive struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{snapshots: make(map[string]Snapshot)}
}

func (a *MemoryArchive) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	out := snap
	return &out, nil
}

func (a *MemoryArchive) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil || strings.TrimSpace(snap.SessionID) == "" {
		return contractx.ErrInvalidSession
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[snap.SessionID] = *snap
	return nil
}

func (a *MemoryArchive) Delete(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.snapshots, sessionID)
	return nil
}
