package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/compositor/internal/compositor"
	"github.com/ivlev/compositor/internal/project"
	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/video"
)

func frameCmd() *cobra.Command {
	var (
		at    string
		out   string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "frame [project.yaml]",
		Short: "Render a single frame to PNG",
		Long: `Render the frame at --time to a PNG file.

With --watch the project file is reloaded on every save and the frame is
rendered again; nodes whose definition did not change keep their state.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args)
			if err != nil {
				return err
			}
			t, err := timebase.Parse(at)
			if err != nil {
				return fmt.Errorf("--time: %w", err)
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

			if err := renderFrame(a, c, t, out); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			a.log.Info("Watching project", "path", path)
			return project.Watch(a.ctx, path, project.DefaultDebounce, func(doc *project.Document, err error) {
				if err != nil {
					a.log.Warn("Reload failed", "path", path, "error", err)
					return
				}
				next, err := a.load(doc)
				if err != nil {
					a.log.Warn("Reload failed", "path", path, "error", err)
					return
				}
				if err := c.ReplaceTimeline(a.ctx, next); err != nil {
					a.log.Error("Cannot apply project", "error", err)
					return
				}
				if err := renderFrame(a, c, t, out); err != nil {
					a.log.Error("Render failed", "error", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&at, "time", "0", "timeline position: 1.5, 3/2, 1500ms or 2s")
	cmd.Flags().StringVarP(&out, "out", "o", "frame.png", "output PNG")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-render when the project file changes")
	return cmd
}

func renderFrame(a *app, c *compositor.Compositor, t timebase.Time, out string) error {
	f, err := c.RenderAt(a.ctx, t)
	if err != nil {
		return err
	}
	if err := video.WritePNG(out, f.Image, nil); err != nil {
		return err
	}
	a.log.Info("Frame written", "out", out, "time", t.String(), "failures", f.Failures, "dirty", len(f.Dirty))
	return nil
}
