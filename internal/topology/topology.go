// Package topology normalizes host display groups onto the 1..9 index space
// used by rule targets and performs bounded group creation.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tabpal/tabpal/internal/state"
	"github.com/tabpal/tabpal/internal/util"
)

// MaxGroups is the hard ceiling on addressable groups, inherited from the
// host's single-digit group numbering.
const MaxGroups = 9

// ErrUndetermined reports that a group's host position cannot be normalized.
var ErrUndetermined = errors.New("group position undetermined")

// Source re-queries the current group layout. Creation effects are only ever
// observed through it, never assumed.
type Source interface {
	ListGroups(ctx context.Context) ([]state.Group, error)
}

// Splitter asks the host to create one more group to the right.
type Splitter interface {
	SplitRight(ctx context.Context) error
}

// EnsurePolicy bounds an Ensure call.
type EnsurePolicy struct {
	// MaxCreates limits creations per call; 0 means unlimited up to MaxGroups.
	MaxCreates int
}

// Topology answers group existence questions and drives creation.
type Topology struct {
	src    Source
	split  Splitter
	logger *util.Logger
}

// New returns a topology over the given source and splitter.
func New(src Source, split Splitter, logger *util.Logger) *Topology {
	return &Topology{src: src, split: split, logger: logger}
}

// NormalizedIndex returns the 1-based index of the group with the given host
// id, ranked by host position. Non-positive host positions cannot be ranked.
func NormalizedIndex(groups []state.Group, groupID int) (int, error) {
	var target *state.Group
	for i := range groups {
		if groups[i].ID == groupID {
			target = &groups[i]
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("%w: group %d not in layout", ErrUndetermined, groupID)
	}
	if target.Position <= 0 {
		return 0, fmt.Errorf("%w: host reported position %d", ErrUndetermined, target.Position)
	}
	rank := 1
	for i := range groups {
		if groups[i].ID == target.ID {
			continue
		}
		if groups[i].Position > 0 && less(groups[i], *target) {
			rank++
		}
	}
	return rank, nil
}

func less(a, b state.Group) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.ID < b.ID
}

// CurrentGroupOf normalizes the owning group of a tab.
func CurrentGroupOf(groups []state.Group, tab state.Tab) (int, error) {
	return NormalizedIndex(groups, tab.GroupID)
}

// Exists reports whether some known group normalizes to the given index.
func Exists(groups []state.Group, index int) bool {
	if index < 1 || index > MaxGroups {
		return false
	}
	ranked := 0
	for i := range groups {
		if groups[i].Position > 0 {
			ranked++
		}
	}
	if ranked > MaxGroups {
		ranked = MaxGroups
	}
	return index <= ranked
}

// Indexes returns the normalized index for every rankable group, ordered.
func Indexes(groups []state.Group) []int {
	ranked := make([]state.Group, 0, len(groups))
	for _, g := range groups {
		if g.Position > 0 {
			ranked = append(ranked, g)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	out := make([]int, 0, len(ranked))
	for i := range ranked {
		if i >= MaxGroups {
			break
		}
		out = append(out, i+1)
	}
	return out
}

// Ensure makes the target index exist if policy allows, creating groups one
// split at a time and re-checking the layout after each. It returns whether
// the index exists afterwards and how many groups were created. The loop
// terminates regardless of host behavior: per-call creation budget, the hard
// group ceiling, and a stall check (a split that does not grow the observed
// group count means the host cannot comply).
func (t *Topology) Ensure(ctx context.Context, index int, policy EnsurePolicy) (bool, int, error) {
	groups, err := t.src.ListGroups(ctx)
	if err != nil {
		return false, 0, err
	}
	if Exists(groups, index) {
		return true, 0, nil
	}
	if index > MaxGroups {
		return false, 0, nil
	}
	created := 0
	for {
		if policy.MaxCreates > 0 && created >= policy.MaxCreates {
			t.logger.Debugf("ensure group %d: creation budget %d exhausted", index, policy.MaxCreates)
			break
		}
		if len(groups) >= MaxGroups {
			t.logger.Debugf("ensure group %d: group ceiling %d reached", index, MaxGroups)
			break
		}
		if err := t.split.SplitRight(ctx); err != nil {
			t.logger.Warnf("ensure group %d: split request failed: %v", index, err)
			break
		}
		created++
		next, err := t.src.ListGroups(ctx)
		if err != nil {
			return false, created, err
		}
		if len(next) <= len(groups) {
			t.logger.Warnf("ensure group %d: split did not increase group count (%d)", index, len(next))
			groups = next
			break
		}
		groups = next
		if Exists(groups, index) {
			return true, created, nil
		}
	}
	return Exists(groups, index), created, nil
}
