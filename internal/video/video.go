// Package video writes composited frames to disk: an ffmpeg encoder fed raw
// RGBA over stdin, or a numbered PNG sequence.
package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"golang.org/x/image/draw"

	"github.com/ivlev/compositor/internal/timebase"
)

// ErrSizeMismatch is returned when a frame does not match the sink size.
var ErrSizeMismatch = errors.New("frame size does not match output")

// Sink receives frames in presentation order.
type Sink interface {
	WriteFrame(img *image.RGBA, audio []float32) error
	Close(ctx context.Context) error
}

// Options describe the encoded stream.
type Options struct {
	Output     string
	Size       image.Point
	Rate       timebase.Rate
	SampleRate int
	Encoder    string
	Quality    int
	Logger     *slog.Logger
}

// DefaultQuality подбирает качество под энкодер, если оно не задано.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}

// QualityArgs переводит качество в аргументы конкретного энкодера.
func QualityArgs(encoder string, quality int) []string {
	if quality <= 0 {
		quality = DefaultQuality(encoder)
	}
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox не везде поддерживает -q:v. Используем битрейт: 75 -> 7.5Мбит/с
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// FFmpegSink streams raw RGBA frames into ffmpeg. Audio is buffered to a
// temporary f32le file and muxed in on Close.
type FFmpegSink struct {
	opts    Options
	tempDir string
	video   string
	audio   *os.File
	audioW  *bufio.Writer
	samples int64
	audible bool

	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   bytes.Buffer
	log   *slog.Logger
}

var _ Sink = (*FFmpegSink)(nil)

// NewFFmpegSink starts the encoder process.
func NewFFmpegSink(ctx context.Context, opts Options) (*FFmpegSink, error) {
	if opts.Size.X <= 0 || opts.Size.Y <= 0 {
		return nil, fmt.Errorf("invalid output size %v", opts.Size)
	}
	if !opts.Rate.Valid() {
		return nil, fmt.Errorf("invalid frame rate %v", opts.Rate)
	}
	if opts.Encoder == "" {
		opts.Encoder = "libx264"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Временная папка рядом с результатом, чтобы финальный rename был атомарным
	tempDir, err := os.MkdirTemp(filepath.Dir(opts.Output), ".compositor-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	s := &FFmpegSink{
		opts:    opts,
		tempDir: tempDir,
		video:   filepath.Join(tempDir, "video"+filepath.Ext(opts.Output)),
		log:     opts.Logger.With("output", opts.Output),
	}
	if s.audio, err = os.Create(filepath.Join(tempDir, "audio.f32")); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("create audio buffer: %w", err)
	}
	s.audioW = bufio.NewWriter(s.audio)

	args := buildFFmpegArgs(opts, s.video)
	s.cmd = exec.CommandContext(ctx, "ffmpeg", args...)
	s.cmd.Stdout = &s.out
	s.cmd.Stderr = &s.out
	if s.stdin, err = s.cmd.StdinPipe(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	s.log.Debug("Encoder started", "encoder", opts.Encoder, "args", args)
	return s, nil
}

// buildFFmpegArgs собирает команду кодирования rawvideo из stdin.
func buildFFmpegArgs(opts Options, out string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Size.X, opts.Size.Y),
		"-framerate", opts.Rate.String(),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", opts.Encoder,
	}
	args = append(args, QualityArgs(opts.Encoder, opts.Quality)...)
	return append(args, out)
}

// buildMuxArgs склеивает готовое видео с сырым f32le звуком.
func buildMuxArgs(video, audio string, sampleRate int, out string) []string {
	return []string{
		"-y",
		"-i", video,
		"-f", "f32le", "-ar", fmt.Sprintf("%d", sampleRate), "-ac", "1", "-i", audio,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		out,
	}
}

// WriteFrame passes one frame to the encoder.
func (s *FFmpegSink) WriteFrame(img *image.RGBA, audio []float32) error {
	if img.Bounds().Size() != s.opts.Size {
		return fmt.Errorf("%w: %v != %v", ErrSizeMismatch, img.Bounds().Size(), s.opts.Size)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if len(audio) > 0 && s.opts.SampleRate > 0 {
		if err := binary.Write(s.audioW, binary.LittleEndian, audio); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		s.samples += int64(len(audio))
		s.audible = s.audible || slices.ContainsFunc(audio, func(v float32) bool { return v != 0 })
	}
	return nil
}

// Close finishes encoding and moves the result into place.
func (s *FFmpegSink) Close(ctx context.Context) error {
	defer s.cleanup()
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w\nLog: %s", err, s.out.String())
	}
	if err := s.audioW.Flush(); err != nil {
		return fmt.Errorf("flush audio: %w", err)
	}

	if !s.audible {
		return os.Rename(s.video, s.opts.Output)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", buildMuxArgs(s.video, s.audio.Name(), s.opts.SampleRate, s.opts.Output)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux: %w\nLog: %s", err, out.String())
	}
	s.log.Debug("Audio muxed", "samples", s.samples)
	return nil
}

func (s *FFmpegSink) cleanup() {
	if s.audio != nil {
		s.audio.Close()
	}
	os.RemoveAll(s.tempDir)
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	// Проверяем, является ли изображение уже RGBA и имеет ли стандартный шаг (stride)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
