package source

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/ivlev/compositor/internal/timebase"
)

// ToneSource is an endless sine generator referenced as "tone:<hz>".
type ToneSource struct {
	freq float64
}

func NewToneSource(freq float64) (*ToneSource, error) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return nil, fmt.Errorf("%w: tone frequency %v", ErrUnsupported, freq)
	}
	return &ToneSource{freq: freq}, nil
}

func parseTone(ref string) (*ToneSource, error) {
	hz, err := strconv.ParseFloat(strings.TrimPrefix(ref, "tone:"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref)
	}
	return NewToneSource(hz)
}

func (s *ToneSource) Freq() float64 { return s.freq }

func (s *ToneSource) Info() Info { return Info{HasAudio: true} }

func (s *ToneSource) Frame(int) (image.Image, error) {
	return nil, fmt.Errorf("%w: tone has no video", ErrUnsupported)
}

func (s *ToneSource) Samples(span timebase.Range, out []float32) error {
	for i := range out {
		t := sampleTime(span, i, len(out)).Float()
		out[i] = float32(math.Sin(2 * math.Pi * s.freq * t))
	}
	return nil
}

func (s *ToneSource) Close() error { return nil }

func sampleTime(span timebase.Range, i, n int) timebase.Time {
	return span.Start.Add(span.Length.Mul(int64(i)).Div(int64(n)))
}
