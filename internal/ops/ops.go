// Package ops is the built-in operation catalog. Every operation reads its
// parameters from the project document as animation properties and samples
// them at the layer-local time of each evaluation.
//
// Drawing operations emit a drawable on their "out" socket. When nothing
// consumes that socket the drawable goes straight into the layer scope;
// otherwise downstream filter and transform nodes wrap it and emit in turn.
package ops

import (
	"fmt"
	"log/slog"

	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/source"
)

const (
	In  = "in"
	Out = "out"
)

// Env carries what operations need from the host.
type Env struct {
	Assets source.Opener
	Logger *slog.Logger
}

// Register adds every built-in operation to reg.
func Register(reg *graph.Registry, env Env) error {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	factories := map[string]graph.Factory{
		"solid":       factory(defaultSolid, newSolid),
		"polygon":     factory(defaultPolygon, newPolygon),
		"qrcode":      factory(defaultQRCode, newQRCode),
		"blur":        factory(defaultBlur, newBlur),
		"colormatrix": factory(defaultColorMatrix, newColorMatrix),
		"shadow":      factory(defaultShadow, newShadow),
		"transform":   factory(defaultTransform, newTransform),
		"kenburns":    factory(defaultKenBurns, newKenBurns),
		"tone":        factory(defaultTone, newTone),
		"media": factory(defaultMedia, func(p MediaParams) (graph.Operation, error) {
			return newMedia(p, env)
		}),
		"audio": factory(defaultAudio, func(p AudioClipParams) (graph.Operation, error) {
			return newAudio(p, env)
		}),
	}
	for typ, f := range factories {
		if err := reg.Register(typ, f); err != nil {
			return err
		}
	}
	return nil
}

// factory decodes parameters over their defaults and builds the operation.
func factory[P any](defaults func() P, build func(P) (graph.Operation, error)) graph.Factory {
	return func(decode func(v any) error) (graph.Operation, error) {
		p := defaults()
		if err := decode(&p); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		return build(p)
	}
}

// emit publishes d on the out socket, and into the scope when no node
// consumes it.
func emit(c *graph.Context, d scene.Drawable) {
	d.Node = c.Key
	c.SetOutput(Out, d)
	if !c.HasConsumers(Out) {
		c.Args.Scope.Add(d)
	}
}

// input reads the upstream drawable.
func input(c *graph.Context) (scene.Drawable, error) {
	d, ok := graph.InputAs[scene.Drawable](c, In)
	if !ok {
		return scene.Drawable{}, fmt.Errorf("%w: %s", graph.ErrMissingInput, In)
	}
	return d, nil
}

// wraps declares the input of operations that wrap one drawable.
type wraps struct{}

func (wraps) Inputs() []graph.Socket {
	return []graph.Socket{{Name: In, Required: true}}
}
