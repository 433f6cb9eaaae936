// Package source opens media referenced by a project: PDF pages, still
// images and image sequences as video frames, audio files and generated
// tones as sample streams.
package source

import (
	"errors"
	"image"

	"github.com/ivlev/compositor/internal/timebase"
)

var (
	ErrNoAudio         = errors.New("source has no audio")
	ErrFrameOutOfRange = errors.New("frame index out of range")
	ErrUnsupported     = errors.New("unsupported source")
)

// Info describes a source. Sources without an intrinsic frame rate (PDF
// pages, stills) report one frame per second.
type Info struct {
	Size       image.Point
	Frames     int
	Rate       timebase.Rate
	SampleRate int
	HasVideo   bool
	HasAudio   bool
}

// Duration of the video part.
func (i Info) Duration() timebase.Time {
	if !i.Rate.Valid() {
		return timebase.Zero
	}
	return timebase.FromFrame(int64(i.Frames), i.Rate)
}

// Source is an opened media item. It is used from one goroutine at a time.
type Source interface {
	Info() Info
	Frame(index int) (image.Image, error)
	Close() error
}

// AudioSource is implemented by sources that carry samples.
type AudioSource interface {
	// Samples fills out with mono samples evenly spaced over span.
	Samples(span timebase.Range, out []float32) error
}

// Opener resolves a media reference into an open source.
type Opener interface {
	Open(ref string) (Source, error)
}

// FrameAt maps a time relative to the start of the source onto a frame
// index, clamping to the last frame.
func FrameAt(info Info, t timebase.Time) int {
	if info.Frames == 0 || !info.Rate.Valid() || t.Negative() {
		return 0
	}
	return int(min(t.Frame(info.Rate), int64(info.Frames-1)))
}
