package session

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("session snapshot not found")

// Archive is the durable snapshot store behind the Store. Implementations
// must tolerate concurrent calls for different sessions.
type Archive interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}
