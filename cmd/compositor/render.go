package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/compositor/internal/engine"
	"github.com/ivlev/compositor/internal/project"
	"github.com/ivlev/compositor/internal/system"
	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
	"github.com/ivlev/compositor/internal/video"
)

func renderCmd() *cobra.Command {
	var out, from, to string
	cmd := &cobra.Command{
		Use:   "render [project.yaml]",
		Short: "Export the timeline to a video file or a PNG sequence",
		Long: `Export [--from, --to) of the timeline.

An --out path ending in a separator, or without an extension, is treated as
a directory and receives a PNG sequence. Anything else is encoded by ffmpeg.
Without --out the video goes to output/<project>_<timestamp>.mp4.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args)
			if err != nil {
				return err
			}
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, projectDir(path))
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := project.Read(path)
			if err != nil {
				return err
			}
			tl, err := a.load(doc)
			if err != nil {
				return err
			}
			c := a.compositor(tl)
			defer c.Close(context.Background())

			if out == "" {
				out = defaultOutput(path)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			sink, err := a.sink(tl, out)
			if err != nil {
				return err
			}

			e := &engine.Exporter{
				Timeline:     tl,
				Compositor:   c,
				Sink:         sink,
				From:         start,
				To:           end,
				ShowStats:    a.cfg.ShowStats,
				BenchmarkLog: a.cfg.BenchmarkLog,
				BuildVersion: a.cfg.BuildVersion,
				Input:        path,
				Logger:       a.log,
			}
			if _, err := e.Run(a.ctx); err != nil {
				return err
			}
			fmt.Printf("[+++] Успех! Результат: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output video file or directory")
	cmd.Flags().StringVar(&from, "from", "0", "first timeline position")
	cmd.Flags().StringVar(&to, "to", "", "end of the range (default: end of timeline)")
	return cmd
}

func (a *app) sink(tl *timeline.Timeline, out string) (video.Sink, error) {
	if strings.HasSuffix(out, string(filepath.Separator)) || filepath.Ext(out) == "" {
		return video.NewPNGSequence(out)
	}
	encoder := a.cfg.Encoder
	if encoder == "" {
		encoder = system.DetectEncoder(a.ctx)
		if encoder != "libx264" {
			a.log.Info("Hardware encoder detected", "encoder", encoder)
		}
	}
	return video.NewFFmpegSink(a.ctx, video.Options{
		Output:     out,
		Size:       tl.Size,
		Rate:       tl.Rate,
		SampleRate: tl.SampleRate,
		Encoder:    encoder,
		Quality:    a.cfg.Quality,
		Logger:     a.log,
	})
}

func parseRange(from, to string) (start, end timebase.Time, err error) {
	if start, err = timebase.Parse(from); err != nil {
		return start, end, fmt.Errorf("--from: %w", err)
	}
	if to == "" {
		return start, timebase.Zero, nil
	}
	if end, err = timebase.Parse(to); err != nil {
		return start, end, fmt.Errorf("--to: %w", err)
	}
	return start, end, nil
}

// defaultOutput names the video after the project and the current time.
func defaultOutput(projectPath string) string {
	baseName := filepath.Base(projectPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}
