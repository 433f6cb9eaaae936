// Package scheduler decides which timeline layers enter, stay and leave
// the active set between two evaluations.
package scheduler

import (
	"slices"

	"github.com/samber/lo"

	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
)

// Result partitions layers for one evaluation time. Begin and Current are
// in stacking order; End is in the stacking order of the previous
// evaluation.
type Result struct {
	Time    timebase.Time
	Begin   []*timeline.Layer
	Current []*timeline.Layer
	End     []*timeline.Layer
}

// Scheduler remembers the active set of the previous evaluation. Before the
// first Schedule call nothing is active, so every in-range layer begins.
type Scheduler struct {
	active    []*timeline.Layer
	last      timebase.Time
	evaluated bool
}

func New() *Scheduler {
	return &Scheduler{}
}

// Schedule computes begin/current/end for tl at t and records the new
// active set. A layer removed from tl since the last call ends.
func (s *Scheduler) Schedule(tl *timeline.Timeline, t timebase.Time) Result {
	res := Result{Time: t}
	res.Current = lo.Filter(tl.Layers(), func(l *timeline.Layer, _ int) bool {
		return l.InRange(t)
	})

	was := lo.SliceToMap(s.active, func(l *timeline.Layer) (timeline.LayerID, *timeline.Layer) {
		return l.ID, l
	})
	now := lo.SliceToMap(res.Current, func(l *timeline.Layer) (timeline.LayerID, bool) {
		return l.ID, true
	})

	res.Begin = lo.Filter(res.Current, func(l *timeline.Layer, _ int) bool {
		_, ok := was[l.ID]
		return !ok
	})
	res.End = lo.Filter(s.active, func(l *timeline.Layer, _ int) bool {
		return !now[l.ID]
	})

	s.active = slices.Clone(res.Current)
	s.last = t
	s.evaluated = true
	return res
}

// Rebind replaces the remembered instance of an active layer with l, which
// carries the same ID. Used when a timeline is swapped and the layer's live
// contexts moved to l.
func (s *Scheduler) Rebind(l *timeline.Layer) bool {
	for i, a := range s.active {
		if a.ID == l.ID {
			s.active[i] = l
			return true
		}
	}
	return false
}

// Active returns the layers active after the last evaluation.
func (s *Scheduler) Active() []*timeline.Layer { return s.active }

// Last returns the time of the last evaluation, and false before the first.
func (s *Scheduler) Last() (timebase.Time, bool) {
	return s.last, s.evaluated
}

// Reset forgets the previous evaluation without running any hooks. The
// caller owns tearing down layers it considered active.
func (s *Scheduler) Reset() {
	s.active = nil
	s.last = timebase.Zero
	s.evaluated = false
}
