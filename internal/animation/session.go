package animation

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ivlev/compositor/internal/timebase"
)

const defaultSessionCache = 4096

// Session samples one animation on a fixed grid and caches the results.
// The cache is keyed by sample index and is purged whenever the grid
// (time span or sample count) changes. A Session is not safe for concurrent
// use; callers own one per sampling site.
type Session[T any] struct {
	anim  *Animation[T]
	span  timebase.Range
	count int
	cache *lru.Cache[int, T]

	hits   int
	misses int
}

// NewSession returns a session holding at most size cached samples. A
// non-positive size selects a default.
func NewSession[T any](a *Animation[T], size int) *Session[T] {
	if size <= 0 {
		size = defaultSessionCache
	}
	cache, _ := lru.New[int, T](size)
	return &Session[T]{anim: a, cache: cache}
}

// Prepare sets the sampling grid. Changing the span or count drops every
// cached sample.
func (s *Session[T]) Prepare(span timebase.Range, count int) {
	if s.count == count && s.span.Start.Equal(span.Start) && s.span.Length.Equal(span.Length) {
		return
	}
	s.span = span
	s.count = count
	s.cache.Purge()
}

// At returns sample i of the prepared grid.
func (s *Session[T]) At(i int) T {
	if v, ok := s.cache.Get(i); ok {
		s.hits++
		return v
	}
	s.misses++
	v := s.anim.Sample(sampleTime(s.span, i, s.count))
	s.cache.Add(i, v)
	return v
}

// SampleBuffer fills out with up to count samples of the prepared grid and
// returns the number written.
func (s *Session[T]) SampleBuffer(out []T) int {
	n := min(s.count, len(out))
	for i := 0; i < n; i++ {
		out[i] = s.At(i)
	}
	return n
}

// Stats returns cache hits and misses since the session was created.
func (s *Session[T]) Stats() (hits, misses int) {
	return s.hits, s.misses
}
