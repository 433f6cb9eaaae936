package project

import (
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
)

// Build instantiates every layer's operations through reg and returns the
// timeline. Errors of all layers are reported together; graph-structural
// errors such as cycles fail the build.
func (d *Document) Build(reg *graph.Registry) (*timeline.Timeline, error) {
	rate, err := timebase.ParseRate(d.FPS)
	if err != nil {
		return nil, fmt.Errorf("fps: %w", err)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", d.Width, d.Height)
	}
	tl := timeline.New(image.Pt(d.Width, d.Height), rate, d.SampleRate)
	if d.Background != nil {
		tl.Background = *d.Background
	}

	if dup := lo.FindDuplicatesBy(d.Layers, func(l LayerDoc) string { return l.ID }); len(dup) > 0 {
		return nil, fmt.Errorf("%w: %s", timeline.ErrDuplicateLayer, dup[0].ID)
	}

	var errs []error
	for i, ld := range d.Layers {
		l, err := ld.build(reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("layer %d (%s): %w", i, ld.ID, err))
			continue
		}
		if err := tl.Add(l); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tl, nil
}

func (ld LayerDoc) build(reg *graph.Registry) (*timeline.Layer, error) {
	if ld.ID == "" {
		return nil, errors.New("missing id")
	}
	b := graph.NewBuilder()
	for _, nd := range ld.Nodes {
		var decode func(v any) error
		if nd.Params.Kind != 0 {
			decode = nd.Params.Decode
		}
		op, err := reg.New(nd.Type, decode)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.Key, err)
		}
		b.Add(graph.Node{
			Key:         nd.Key,
			Type:        nd.Type,
			Op:          op,
			Disabled:    nd.Disabled,
			Fingerprint: nd.fingerprint(),
		})
	}
	for _, lk := range ld.Links {
		b.Connect(lk.From, lo.CoalesceOrEmpty(lk.FromSocket, "out"), lk.To, lo.CoalesceOrEmpty(lk.ToSocket, "in"))
	}
	g, err := b.Build()
	if err != nil {
		return nil, err
	}

	l := timeline.NewLayer(timeline.LayerID(ld.ID), ld.Start, ld.Length, g)
	l.Name = lo.CoalesceOrEmpty(ld.Name, ld.ID)
	l.Enabled = ld.IsEnabled()
	return l, nil
}

// fingerprint identifies a node definition. Nodes whose fingerprint is
// unchanged across an edit keep their live state.
func (nd NodeDoc) fingerprint() string {
	h := xxhash.New()
	_, _ = h.WriteString(nd.Type)
	_, _ = h.WriteString(strconv.FormatBool(nd.Disabled))
	if nd.Params.Kind != 0 {
		if data, err := yaml.Marshal(&nd.Params); err == nil {
			_, _ = h.Write(data)
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Validate builds the document and discards the result.
func (d *Document) Validate(reg *graph.Registry) error {
	_, err := d.Build(reg)
	return err
}
