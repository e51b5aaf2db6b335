// Package metrics tracks in-process counters for routing activity.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is the serializable view of the current counters.
type Snapshot struct {
	Started          time.Time `json:"started"`
	Evaluations      uint64    `json:"evaluations"`
	Matches          uint64    `json:"matches"`
	Moves            uint64    `json:"moves"`
	MoveErrors       uint64    `json:"moveErrors"`
	SuppressedGlobal uint64    `json:"suppressedGlobal"`
	SuppressedKeyed  uint64    `json:"suppressedKeyed"`
	GroupsCreated    uint64    `json:"groupsCreated"`
	LastMove         time.Time `json:"lastMove,omitempty"`
}

// Collector aggregates routing counters.
type Collector struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// NewCollector returns a collector with its start time set.
func NewCollector() *Collector {
	c := &Collector{now: time.Now}
	c.snap.Started = c.now()
	return c
}

func (c *Collector) update(fn func(*Snapshot, time.Time)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.snap, c.now())
}

// RecordEvaluation counts one evaluation cycle entering the pipeline.
func (c *Collector) RecordEvaluation() {
	c.update(func(s *Snapshot, _ time.Time) { s.Evaluations++ })
}

// RecordMatch counts a rule matching the active tab.
func (c *Collector) RecordMatch() {
	c.update(func(s *Snapshot, _ time.Time) { s.Matches++ })
}

// RecordMove counts a successful move action.
func (c *Collector) RecordMove() {
	c.update(func(s *Snapshot, now time.Time) {
		s.Moves++
		s.LastMove = now
	})
}

// RecordMoveError counts a failed move action.
func (c *Collector) RecordMoveError() {
	c.update(func(s *Snapshot, _ time.Time) { s.MoveErrors++ })
}

// RecordSuppressedGlobal counts an evaluation skipped by the global window.
func (c *Collector) RecordSuppressedGlobal() {
	c.update(func(s *Snapshot, _ time.Time) { s.SuppressedGlobal++ })
}

// RecordSuppressedKeyed counts a move skipped by a per-tab suppression key.
func (c *Collector) RecordSuppressedKeyed() {
	c.update(func(s *Snapshot, _ time.Time) { s.SuppressedKeyed++ })
}

// AddGroupsCreated counts groups created while ensuring a target.
func (c *Collector) AddGroupsCreated(n int) {
	if n <= 0 {
		return
	}
	c.update(func(s *Snapshot, _ time.Time) { s.GroupsCreated += uint64(n) })
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}
