package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

const shardCount = 32

// Store keeps per-conversation records in a sharded concurrent map and
// persists filtered snapshots through an Archive. All record mutation
// happens under the owning shard's lock, so there is at most one writer per
// session at a time.
type Store struct {
	shards   [shardCount]shard
	profiles profileCache
	archive  Archive
	now      func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(archive Archive, opts ...Option) *Store {
	if archive == nil {
		archive = NewMemoryArchive()
	}
	s := &Store{
		archive: archive,
		now:     time.Now,
	}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*Record)
	}
	s.profiles.entries = make(map[string]contractx.UserProfile)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%shardCount]
}

// Create registers a session. Creating an id that already exists is a no-op.
func (s *Store) Create(sessionID, userID string) error {
	if sessionID == "" {
		return contractx.ErrInvalidSession
	}
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.records[sessionID]; ok {
		return nil
	}
	sh.records[sessionID] = newRecord(sessionID, userID, s.now())
	return nil
}

// Get returns a copy of the live record.
func (s *Store) Get(sessionID string) (Record, error) {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.records[sessionID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, sessionID)
	}
	return rec.clone(), nil
}

// Update runs fn against the live record under the shard lock.
func (s *Store) Update(sessionID string, fn func(*Record)) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, sessionID)
	}
	fn(rec)
	rec.UpdatedAt = s.now()
	return nil
}

func (s *Store) AppendMessage(sessionID string, msg contractx.Message) error {
	return s.Update(sessionID, func(rec *Record) {
		rec.History = append(rec.History, msg)
	})
}

// TrimHistory caps the history at 2*maxMessages entries, always keeping the
// first entry as the conversation anchor plus the most recent tail.
func (s *Store) TrimHistory(sessionID string, maxMessages int) error {
	if maxMessages <= 0 {
		return nil
	}
	return s.Update(sessionID, func(rec *Record) {
		limit := 2 * maxMessages
		if len(rec.History) <= limit {
			return
		}
		trimmed := make([]contractx.Message, 0, limit)
		trimmed = append(trimmed, rec.History[0])
		trimmed = append(trimmed, rec.History[len(rec.History)-(limit-1):]...)
		rec.History = trimmed
	})
}

// LoadPersisted fetches the durable snapshot's memory for a session. A
// missing snapshot yields an empty map, not an error.
func (s *Store) LoadPersisted(ctx context.Context, sessionID string) (map[string]any, error) {
	snap, err := s.archive.Load(ctx, sessionID)
	if err != nil {
		if err == ErrSnapshotNotFound {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if snap.Memory == nil {
		return map[string]any{}, nil
	}
	return snap.Memory, nil
}

// MergePersisted unions persisted memory into the live record. Live values
// win; only keys absent live are copied in.
func (s *Store) MergePersisted(sessionID string, persisted map[string]any) error {
	return s.Update(sessionID, func(rec *Record) {
		for k, v := range persisted {
			if _, ok := rec.Memory[k]; !ok {
				rec.Memory[k] = v
			}
		}
	})
}

// Persist snapshots the filtered memory and history and writes it through
// the archive.
func (s *Store) Persist(ctx context.Context, sessionID string) error {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	rec, ok := sh.records[sessionID]
	if !ok {
		sh.mu.RUnlock()
		return fmt.Errorf("%w: %s", contractx.ErrSessionNotFound, sessionID)
	}
	snap := Snapshot{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		Memory:    snapshotMemory(rec.Memory),
		History:   append([]contractx.Message(nil), rec.History...),
		SavedAt:   s.now().UTC(),
	}
	sh.mu.RUnlock()

	if err := s.archive.Save(ctx, &snap); err != nil {
		return fmt.Errorf("persist session %s: %w", sessionID, err)
	}
	log.Debug().Str("session_id", sessionID).Int("memory_keys", len(snap.Memory)).Msg("session persisted")
	return nil
}

// Reset drops the live record and its durable snapshot.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	delete(sh.records, sessionID)
	sh.mu.Unlock()
	return s.archive.Delete(ctx, sessionID)
}

// Count reports the number of live sessions across all shards.
func (s *Store) Count() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].records)
		s.shards[i].mu.RUnlock()
	}
	return total
}

// profileCache is a pure key/value cache keyed "user_id:session_id".
type profileCache struct {
	mu      sync.RWMutex
	entries map[string]contractx.UserProfile
}

func profileKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func (s *Store) SetProfile(userID, sessionID string, profile contractx.UserProfile) {
	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()
	s.profiles.entries[profileKey(userID, sessionID)] = profile
}

// Profile returns the cached profile, or an empty profile if none was set.
func (s *Store) Profile(userID, sessionID string) contractx.UserProfile {
	s.profiles.mu.RLock()
	defer s.profiles.mu.RUnlock()
	return s.profiles.entries[profileKey(userID, sessionID)]
}
