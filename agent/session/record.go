package session

import (
	"encoding/json"
	"fmt"
	"time"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

const (
	// Memory keys carrying this prefix are process-internal scratch state and
	// never leave the live record.
	internalKeyPrefix = "_"

	// Strings above this size are summarized instead of persisted verbatim.
	maxPersistedStringLen = 10000
)

// Record is the live per-conversation state. It is owned by the Store and
// must only be touched under the owning shard's lock.
type Record struct {
	SessionID string             `json:"session_id"`
	UserID    string             `json:"user_id"`
	Memory    map[string]any     `json:"memory"`
	History   []contractx.Message `json:"history"`
	CartID    string             `json:"cart_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newRecord(sessionID, userID string, now time.Time) *Record {
	return &Record{
		SessionID: sessionID,
		UserID:    userID,
		Memory:    make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Record) clone() Record {
	out := *r
	out.Memory = make(map[string]any, len(r.Memory))
	for k, v := range r.Memory {
		out.Memory[k] = v
	}
	out.History = append([]contractx.Message(nil), r.History...)
	return out
}

// Snapshot is the durable form of a record: the filtered memory map plus the
// trimmed message history.
type Snapshot struct {
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id"`
	Memory    map[string]any      `json:"memory"`
	History   []contractx.Message `json:"history"`
	SavedAt   time.Time           `json:"saved_at"`
}

// snapshotMemory copies the persistable subset of a memory map. Internal
// keys are dropped; values that cannot be serialized or are oversized are
// replaced by marker entries so a single bad value never aborts a save.
func snapshotMemory(memory map[string]any) map[string]any {
	out := make(map[string]any, len(memory))
	for key, value := range memory {
		if len(key) > 0 && key[:1] == internalKeyPrefix {
			continue
		}
		if s, ok := value.(string); ok && len(s) > maxPersistedStringLen {
			out[key+"_summary"] = fmt.Sprintf("Large value: %d chars", len(s))
			continue
		}
		if _, err := json.Marshal(value); err != nil {
			out[key+"_type"] = fmt.Sprintf("Non-serializable %T", value)
			continue
		}
		out[key] = value
	}
	return out
}
