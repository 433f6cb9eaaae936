package scheduler

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
)

func sec(n int64) timebase.Time { return timebase.Seconds(n) }

func newTimeline(t *testing.T, layers ...*timeline.Layer) *timeline.Timeline {
	t.Helper()
	tl := timeline.New(image.Pt(16, 16), timebase.FPS(30), 48000)
	for _, l := range layers {
		require.NoError(t, tl.Add(l))
	}
	return tl
}

func ids(ls []*timeline.Layer) []timeline.LayerID {
	out := []timeline.LayerID{}
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestSingleLayerTransitions(t *testing.T) {
	l := timeline.NewLayer("L", sec(0), sec(5), nil)
	tl := newTimeline(t, l)
	s := New()

	r := s.Schedule(tl, sec(0))
	assert.Equal(t, []timeline.LayerID{"L"}, ids(r.Begin))
	assert.Equal(t, []timeline.LayerID{"L"}, ids(r.Current))
	assert.Empty(t, r.End)

	r = s.Schedule(tl, sec(3))
	assert.Empty(t, r.Begin)
	assert.Equal(t, []timeline.LayerID{"L"}, ids(r.Current))
	assert.Empty(t, r.End)

	r = s.Schedule(tl, sec(6))
	assert.Empty(t, r.Begin)
	assert.Empty(t, r.Current)
	assert.Equal(t, []timeline.LayerID{"L"}, ids(r.End))

	// end is reported exactly once
	r = s.Schedule(tl, sec(7))
	assert.Empty(t, r.End)
}

func TestOverlappingLayersKeepStackingOrder(t *testing.T) {
	l1 := timeline.NewLayer("L1", sec(0), sec(5), nil)
	l2 := timeline.NewLayer("L2", sec(3), sec(5), nil)
	tl := newTimeline(t, l1, l2)
	s := New()

	r := s.Schedule(tl, sec(4))
	assert.Equal(t, []timeline.LayerID{"L1", "L2"}, ids(r.Current))
	assert.Equal(t, []timeline.LayerID{"L1", "L2"}, ids(r.Begin))

	r = s.Schedule(tl, sec(5))
	assert.Equal(t, []timeline.LayerID{"L2"}, ids(r.Current))
	assert.Equal(t, []timeline.LayerID{"L1"}, ids(r.End))
}

func TestRangeIsHalfOpen(t *testing.T) {
	l := timeline.NewLayer("L", sec(2), sec(3), nil)
	tl := newTimeline(t, l)
	for _, tc := range []struct {
		at   timebase.Time
		want bool
	}{
		{sec(1), false},
		{sec(2), true},
		{timebase.Millis(4999), true},
		{sec(5), false},
	} {
		r := New().Schedule(tl, tc.at)
		assert.Equal(t, tc.want, len(r.Current) == 1, tc.at.String())
	}
}

func TestMalformedAndDisabledLayersExcluded(t *testing.T) {
	zero := timeline.NewLayer("zero", sec(0), sec(0), nil)
	neg := timeline.NewLayer("neg", sec(0), sec(-1), nil)
	off := timeline.NewLayer("off", sec(0), sec(10), nil)
	off.Enabled = false
	tl := newTimeline(t, zero, neg, off)

	r := New().Schedule(tl, sec(0))
	assert.Empty(t, r.Current)
	assert.Empty(t, r.Begin)
}

func TestDisablingActiveLayerEndsIt(t *testing.T) {
	l := timeline.NewLayer("L", sec(0), sec(10), nil)
	tl := newTimeline(t, l)
	s := New()
	s.Schedule(tl, sec(1))

	l.Enabled = false
	r := s.Schedule(tl, sec(2))
	assert.Equal(t, []timeline.LayerID{"L"}, ids(r.End))
}

func TestRemovedLayerEnds(t *testing.T) {
	l := timeline.NewLayer("L", sec(0), sec(10), nil)
	tl := newTimeline(t, l)
	s := New()
	s.Schedule(tl, sec(1))

	require.True(t, tl.Remove("L"))
	r := s.Schedule(tl, sec(2))
	require.Len(t, r.End, 1)
	assert.Same(t, l, r.End[0])
}

func TestNeverInBeginAndEndTogether(t *testing.T) {
	layers := []*timeline.Layer{
		timeline.NewLayer("a", sec(0), sec(2), nil),
		timeline.NewLayer("b", sec(1), sec(2), nil),
		timeline.NewLayer("c", sec(3), sec(1), nil),
	}
	tl := newTimeline(t, layers...)
	s := New()
	for _, at := range []int64{0, 1, 2, 3, 4, 0, 3} {
		r := s.Schedule(tl, sec(at))
		for _, b := range r.Begin {
			assert.NotContains(t, ids(r.End), b.ID)
		}
	}
}

func TestRebindAndReset(t *testing.T) {
	l := timeline.NewLayer("L", sec(0), sec(10), nil)
	tl := newTimeline(t, l)
	s := New()
	s.Schedule(tl, sec(1))
	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, sec(1), last)

	swapped := timeline.NewLayer("L", sec(0), sec(10), nil)
	assert.True(t, s.Rebind(swapped))
	assert.Same(t, swapped, s.Active()[0])

	s.Reset()
	_, ok = s.Last()
	assert.False(t, ok)
	r := s.Schedule(tl, sec(1))
	assert.Len(t, r.Begin, 1)
}
