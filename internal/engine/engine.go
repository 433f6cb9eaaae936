// Package engine exports a timeline: frames are composited on the render
// thread and streamed to an encoder sink while the next ones are rendered.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/compositor/internal/compositor"
	"github.com/ivlev/compositor/internal/system"
	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
	"github.com/ivlev/compositor/internal/video"
)

// ErrEmptyRange is returned when the export range holds no frames.
var ErrEmptyRange = errors.New("export range is empty")

// DefaultBuffer is the number of rendered frames waiting for the encoder.
const DefaultBuffer = 8

// Exporter renders [From, To) of a timeline into a sink.
type Exporter struct {
	Timeline   *timeline.Timeline
	Compositor *compositor.Compositor
	Sink       video.Sink

	From, To timebase.Time // To <= From means the end of the timeline
	Buffer   int

	ShowStats    bool
	Stats        io.Writer // report destination, stdout by default
	BenchmarkLog string    // appended when ShowStats is set
	BuildVersion string
	Input        string

	Logger *slog.Logger
}

// Report is the outcome of one export.
type Report struct {
	Frames   int64
	Failures int
	Total    time.Duration
	Render   time.Duration
	Encode   time.Duration
	Memory   system.MemoryStats
}

// FPS is the effective export speed.
func (r Report) FPS() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Total.Seconds()
}

// FrameRange returns the first frame index and the number of frames whose
// start time lies in [from, to).
func FrameRange(from, to timebase.Time, rate timebase.Rate) (first, count int64) {
	first = ceilFrame(from, rate)
	end := ceilFrame(to, rate)
	return first, max(end-first, 0)
}

func ceilFrame(t timebase.Time, rate timebase.Rate) int64 {
	n := t.Frame(rate)
	if timebase.FromFrame(n, rate).Before(t) {
		n++
	}
	return n
}

// Run exports every frame and closes the sink.
func (e *Exporter) Run(ctx context.Context) (Report, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	rate := e.Timeline.Rate
	to := e.To
	if !to.After(e.From) {
		to = e.Timeline.Duration()
	}
	first, count := FrameRange(e.From, to, rate)
	if count == 0 {
		return Report{}, fmt.Errorf("%w: [%s, %s)", ErrEmptyRange, e.From, to)
	}
	buffer := e.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	log.Info("Export started",
		"from", e.From.String(), "to", to.String(),
		"frames", count, "size", e.Timeline.Size.String(), "rate", rate.String())

	var rep Report
	startTime := time.Now()
	frames := make(chan compositor.Frame, buffer)

	g, gctx := errgroup.WithContext(ctx)

	// 1. Рендер: строго последовательно на потоке композитора
	g.Go(func() error {
		defer close(frames)
		renderStart := time.Now()
		defer func() { rep.Render = time.Since(renderStart) }()
		for n := first; n < first+count; n++ {
			f, err := e.Compositor.RenderAt(gctx, timebase.FromFrame(n, rate))
			if err != nil {
				return fmt.Errorf("render frame %d: %w", n, err)
			}
			select {
			case frames <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// 2. Кодирование: забирает готовые кадры, пока рендерятся следующие
	g.Go(func() error {
		encodeStart := time.Now()
		defer func() { rep.Encode = time.Since(encodeStart) }()
		for f := range frames {
			if err := e.Sink.WriteFrame(f.Image, f.Audio); err != nil {
				return fmt.Errorf("encode frame %d: %w", rep.Frames, err)
			}
			rep.Frames++
			rep.Failures += f.Failures
			if rep.Frames%int64(max(rate.Float(), 1)) == 0 {
				log.Debug("Export progress", "frame", rep.Frames, "of", count)
			}
		}
		return nil
	})

	err := g.Wait()
	if cerr := e.Sink.Close(ctx); err == nil && cerr != nil {
		err = fmt.Errorf("close sink: %w", cerr)
	}
	rep.Total = time.Since(startTime)
	if err != nil {
		return rep, err
	}

	if mem, merr := system.ReadMemory(); merr == nil {
		rep.Memory = mem
	}
	log.Info("Export finished",
		"frames", rep.Frames, "failures", rep.Failures,
		"elapsed", rep.Total.String(), "fps", fmt.Sprintf("%.2f", rep.FPS()))

	if e.ShowStats {
		e.writeStats(rep, log)
	}
	return rep, nil
}

func (e *Exporter) writeStats(rep Report, log *slog.Logger) {
	w := e.Stats
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprint(w, FormatReport(rep, e.BuildVersion))

	if e.BenchmarkLog == "" {
		return
	}
	// Логирование в файл
	entry := fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		e.BuildVersion,
		filepath.Base(e.Input),
		rep.Frames,
		rep.Total.Seconds(),
		rep.Render.Seconds(),
		rep.Encode.Seconds(),
		rep.FPS(),
	)
	f, err := os.OpenFile(e.BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn("Cannot write benchmark log", "path", e.BenchmarkLog, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		log.Warn("Cannot write benchmark log", "path", e.BenchmarkLog, "error", err)
	}
}

// FormatReport renders the performance report.
func FormatReport(rep Report, build string) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Frames: %d (node failures: %d)\n"+
			"Total Time: %.2fs\n"+
			"Rendering (CPU): %.2fs\n"+
			"Encoding: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Memory RSS: %.1f MiB (host used %.1f%%)\n"+
			"----------------------------\n",
		build, rep.Frames, rep.Failures, rep.Total.Seconds(), rep.Render.Seconds(),
		rep.Encode.Seconds(), rep.FPS(), float64(rep.Memory.RSS)/(1<<20), rep.Memory.HostUsed,
	)
}
