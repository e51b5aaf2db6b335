package metrics

import (
	"testing"
	"time"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.RecordEvaluation()
	c.RecordEvaluation()
	c.RecordMatch()
	c.RecordMove()
	c.RecordMoveError()
	c.RecordSuppressedGlobal()
	c.RecordSuppressedKeyed()
	c.AddGroupsCreated(2)
	c.AddGroupsCreated(0)

	snap := c.Snapshot()
	if snap.Evaluations != 2 {
		t.Fatalf("evaluations = %d", snap.Evaluations)
	}
	if snap.Matches != 1 || snap.Moves != 1 || snap.MoveErrors != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.SuppressedGlobal != 1 || snap.SuppressedKeyed != 1 {
		t.Fatalf("unexpected suppression counters: %+v", snap)
	}
	if snap.GroupsCreated != 2 {
		t.Fatalf("groupsCreated = %d", snap.GroupsCreated)
	}
	if snap.Started.IsZero() {
		t.Fatalf("started time not set")
	}
}

func TestCollectorRecordsLastMove(t *testing.T) {
	c := NewCollector()
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	c.RecordMove()
	if got := c.Snapshot().LastMove; !got.Equal(base) {
		t.Fatalf("lastMove = %v, want %v", got, base)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordEvaluation()
	c.RecordMove()
	if snap := c.Snapshot(); snap.Evaluations != 0 {
		t.Fatalf("nil collector should report zero snapshot")
	}
}
