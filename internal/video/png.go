package video

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGSequence writes frame_000000.png, frame_000001.png ... into Dir.
// Audio, when present, goes to audio.f32 as mono little-endian float32.
type PNGSequence struct {
	Dir string

	enc    png.Encoder
	n      int
	audio  *os.File
	audioW *bufio.Writer
}

var _ Sink = (*PNGSequence)(nil)

// NewPNGSequence creates dir if needed.
func NewPNGSequence(dir string) (*PNGSequence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &PNGSequence{Dir: dir, enc: png.Encoder{CompressionLevel: png.BestSpeed}}, nil
}

// FrameName is the file name of frame n.
func FrameName(n int) string {
	return fmt.Sprintf("frame_%06d.png", n)
}

func (s *PNGSequence) WriteFrame(img *image.RGBA, audio []float32) error {
	if err := WritePNG(filepath.Join(s.Dir, FrameName(s.n)), img, &s.enc); err != nil {
		return err
	}
	s.n++
	if len(audio) == 0 {
		return nil
	}
	if s.audio == nil {
		f, err := os.Create(filepath.Join(s.Dir, "audio.f32"))
		if err != nil {
			return fmt.Errorf("create audio: %w", err)
		}
		s.audio, s.audioW = f, bufio.NewWriter(f)
	}
	return binary.Write(s.audioW, binary.LittleEndian, audio)
}

// Close flushes the audio file.
func (s *PNGSequence) Close(context.Context) error {
	if s.audio == nil {
		return nil
	}
	err := s.audioW.Flush()
	if cerr := s.audio.Close(); err == nil {
		err = cerr
	}
	return err
}

// Written returns the number of frames written so far.
func (s *PNGSequence) Written() int { return s.n }

// WritePNG encodes img to path through a temporary file.
func WritePNG(path string, img image.Image, enc *png.Encoder) error {
	if enc == nil {
		enc = &png.Encoder{}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := enc.Encode(w, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
