package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivlev/compositor/internal/timebase"
)

func TestSessionCachesWithinGrid(t *testing.T) {
	a := linear0to100(t)
	s := NewSession(a, 0)
	span := timebase.Range{Start: ms(0), Length: ms(1000)}

	s.Prepare(span, 4)
	out := make([]float64, 8)
	n := s.SampleBuffer(out)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float64{0, 25, 50, 75}, out[:n])

	s.Prepare(span, 4)
	s.SampleBuffer(out)
	hits, misses := s.Stats()
	assert.Equal(t, 4, hits)
	assert.Equal(t, 4, misses)
}

func TestSessionInvalidatesOnRangeChange(t *testing.T) {
	a := linear0to100(t)
	s := NewSession(a, 16)
	s.Prepare(timebase.Range{Start: ms(0), Length: ms(1000)}, 2)
	assert.Equal(t, 50.0, s.At(1))

	s.Prepare(timebase.Range{Start: ms(500), Length: ms(500)}, 2)
	assert.Equal(t, 75.0, s.At(1))
	_, misses := s.Stats()
	assert.Equal(t, 2, misses)
}

func TestSampleBufferMatchesSample(t *testing.T) {
	a := linear0to100(t)
	span := timebase.Range{Start: ms(100), Length: ms(800)}
	out := make([]float64, 3)
	n := SampleBuffer(a, span, 8, out)
	assert.Equal(t, 3, n)
	assert.InDelta(t, a.Sample(ms(200)), out[1], 1e-9)
}
