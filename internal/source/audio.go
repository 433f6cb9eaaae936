package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ivlev/compositor/internal/timebase"
)

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".aac": true, ".flac": true, ".ogg": true,
}

func isAudio(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// PCMSource holds mono float samples decoded up front.
type PCMSource struct {
	data []float32
	rate int
}

func NewPCMSource(data []float32, rate int) *PCMSource {
	return &PCMSource{data: data, rate: rate}
}

// DecodeAudio декодирует файл через ffmpeg в моно f32le с частотой rate.
func DecodeAudio(ctx context.Context, path string, rate int) (*PCMSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found for %s", ErrUnsupported, path)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	data := make([]float32, len(raw)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return NewPCMSource(data, rate), nil
}

func (s *PCMSource) Info() Info {
	return Info{SampleRate: s.rate, HasAudio: true}
}

func (s *PCMSource) Duration() timebase.Time {
	return timebase.New(int64(len(s.data)), int64(s.rate))
}

func (s *PCMSource) Frame(int) (image.Image, error) {
	return nil, fmt.Errorf("%w: audio has no video", ErrUnsupported)
}

// Samples picks the nearest decoded sample for each output slot; outside
// the decoded range the output is silent.
func (s *PCMSource) Samples(span timebase.Range, out []float32) error {
	if s.rate <= 0 {
		return ErrNoAudio
	}
	sr := timebase.FPS(int64(s.rate))
	for i := range out {
		idx := sampleTime(span, i, len(out)).Frame(sr)
		if idx < 0 || idx >= int64(len(s.data)) {
			out[i] = 0
			continue
		}
		out[i] = s.data[idx]
	}
	return nil
}

func (s *PCMSource) Close() error { return nil }
