package ticket

import (
	"context"
	"testing"
)

func TestIssueMonotonicPerPair(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	t1 := tracker.Issue("conv-1", KindSearch)
	t2 := tracker.Issue("conv-1", KindSearch)

	if t2.Seq <= t1.Seq {
		t.Fatalf("Issue() seq = %d then %d, want strictly increasing", t1.Seq, t2.Seq)
	}

	// A different kind has its own sequence.
	d1 := tracker.Issue("conv-1", KindProductDetail)
	if d1.Seq != 1 {
		t.Fatalf("Issue() for new kind seq = %d, want 1", d1.Seq)
	}
}

func TestSupersededTicketIsNotCurrent(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	t1 := tracker.Issue("conv-1", KindSearch)
	t2 := tracker.Issue("conv-1", KindSearch)

	if tracker.IsCurrent(t1) {
		t.Fatal("IsCurrent(t1) = true after t2 was issued")
	}
	if !tracker.IsCurrent(t2) {
		t.Fatal("IsCurrent(t2) = false, want true")
	}
}

func TestIsCurrentAcrossConversations(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	a := tracker.Issue("conv-a", KindSearch)
	tracker.Issue("conv-b", KindSearch)

	if !tracker.IsCurrent(a) {
		t.Fatal("ticket for conv-a must not be superseded by conv-b activity")
	}
}

func TestBindCancelsSupersededWork(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	t1 := tracker.Issue("conv-1", KindSearch)

	ctx, done := tracker.Bind(context.Background(), t1)
	defer done()

	select {
	case <-ctx.Done():
		t.Fatal("bound context cancelled before supersession")
	default:
	}

	tracker.Issue("conv-1", KindSearch)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("bound context not cancelled after a newer ticket was issued")
	}
}

func TestBindStaleTicketArrivesCancelled(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	t1 := tracker.Issue("conv-1", KindSearch)
	tracker.Issue("conv-1", KindSearch)

	ctx, done := tracker.Bind(context.Background(), t1)
	defer done()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("binding a stale ticket must return an already-cancelled context")
	}
}

func TestBindReleaseDoesNotAffectNewerTicket(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	t1 := tracker.Issue("conv-1", KindSearch)
	_, done1 := tracker.Bind(context.Background(), t1)

	t2 := tracker.Issue("conv-1", KindSearch)
	ctx2, done2 := tracker.Bind(context.Background(), t2)
	defer done2()

	// Finishing the stale work must not cancel the current ticket's context.
	done1()

	select {
	case <-ctx2.Done():
		t.Fatal("current ticket's context cancelled by stale work finishing")
	default:
	}
}
