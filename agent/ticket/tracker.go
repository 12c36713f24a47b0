// Package ticket orders acceptance of concurrent remote-call results within
// a conversation. Each (conversation, operation kind) pair has a monotonic
// sequence; only the highest-sequence ticket is current, and work bound to a
// superseded ticket has its context cancelled.
package ticket

import (
	"context"
	"sync"
)

// Operation kinds tracked per conversation.
const (
	KindSearch        = "search"
	KindProductDetail = "product_detail"
)

// Ticket identifies one issued request slot.
type Ticket struct {
	ConversationID string
	Kind           string
	Seq            uint64
}

type key struct {
	conversation string
	kind         string
}

type entry struct {
	seq    uint64
	cancel context.CancelFunc
}

// Tracker allocates tickets and cancels superseded in-flight work. The zero
// value is not usable; call NewTracker.
type Tracker struct {
	mu      sync.Mutex
	entries map[key]*entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[key]*entry)}
}

// Issue allocates the next sequence number for (conversationID, kind) and
// cancels any context bound to the previous ticket. Non-blocking.
func (t *Tracker) Issue(conversationID, kind string) Ticket {
	k := key{conversation: conversationID, kind: kind}

	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok {
		e = &entry{}
		t.entries[k] = e
	}
	e.seq++
	cancel := e.cancel
	e.cancel = nil
	seq := e.seq
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	return Ticket{ConversationID: conversationID, Kind: kind, Seq: seq}
}

// IsCurrent reports whether no later ticket has been issued for the same
// (conversation, kind) since tk.
func (t *Tracker) IsCurrent(tk Ticket) bool {
	k := key{conversation: tk.ConversationID, kind: tk.Kind}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[k]
	return ok && e.seq == tk.Seq
}

// Bind derives a context that is cancelled when tk is superseded. If tk is
// already stale the returned context arrives cancelled, so the remote call
// aborts before it starts. The returned cancel must be called when the work
// bound to tk finishes, superseded or not.
func (t *Tracker) Bind(ctx context.Context, tk Ticket) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)

	k := key{conversation: tk.ConversationID, kind: tk.Kind}
	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok || e.seq != tk.Seq {
		t.mu.Unlock()
		cancel()
		return bound, cancel
	}
	e.cancel = cancel
	t.mu.Unlock()

	return bound, func() {
		t.mu.Lock()
		if cur, ok := t.entries[k]; ok && cur.seq == tk.Seq {
			cur.cancel = nil
		}
		t.mu.Unlock()
		cancel()
	}
}
