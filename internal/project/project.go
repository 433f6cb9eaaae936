// Package project reads and writes the YAML project document and builds a
// timeline from it.
//
//	version: "1"
//	width: 1280
//	height: 720
//	fps: 30000/1001
//	layers:
//	  - id: title
//	    start: 0
//	    length: 5s
//	    nodes:
//	      - {key: bg, type: solid, params: {color: "#202040"}}
//	      - {key: blur, type: blur, params: {radius: 3}}
//	    links:
//	      - {from: bg, to: blur}
package project

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/timebase"
)

const Version = "1"

var ErrUnsupportedVersion = errors.New("unsupported project version")

// Document is the serialized project.
type Document struct {
	Version    string     `yaml:"version"`
	Width      int        `yaml:"width,omitempty"`
	Height     int        `yaml:"height,omitempty"`
	FPS        string     `yaml:"fps,omitempty"`
	SampleRate int        `yaml:"sampleRate,omitempty"`
	Background *geom.Color `yaml:"background,omitempty"`
	Layers     []LayerDoc `yaml:"layers"`
}

// LayerDoc is one timeline layer with its operation graph.
type LayerDoc struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name,omitempty"`
	Start   timebase.Time `yaml:"start"`
	Length  timebase.Time `yaml:"length"`
	Enabled *bool         `yaml:"enabled,omitempty"`
	Nodes   []NodeDoc     `yaml:"nodes"`
	Links   []LinkDoc     `yaml:"links,omitempty"`
}

func (l LayerDoc) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// NodeDoc is an operation instance. Params are decoded by the operation's
// factory.
type NodeDoc struct {
	Key      string    `yaml:"key"`
	Type     string    `yaml:"type"`
	Disabled bool      `yaml:"disabled,omitempty"`
	Params   yaml.Node `yaml:"params,omitempty"`
}

// LinkDoc connects an output socket to an input socket. Sockets default to
// "out" and "in".
type LinkDoc struct {
	From       string `yaml:"from"`
	FromSocket string `yaml:"fromSocket,omitempty"`
	To         string `yaml:"to"`
	ToSocket   string `yaml:"toSocket,omitempty"`
}

// Defaults fill document fields that are left out.
type Defaults struct {
	Width      int
	Height     int
	FPS        string
	SampleRate int
	Background geom.Color
}

// Apply fills zero fields of d.
func (def Defaults) Apply(d *Document) {
	if d.Width == 0 {
		d.Width = def.Width
	}
	if d.Height == 0 {
		d.Height = def.Height
	}
	if d.FPS == "" {
		d.FPS = def.FPS
	}
	if d.SampleRate == 0 {
		d.SampleRate = def.SampleRate
	}
	if d.Background == nil {
		bg := def.Background
		d.Background = &bg
	}
}

// Parse decodes a document and checks its version.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Version != "" && doc.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

// Read загружает проект из YAML файла
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Write сохраняет проект в YAML файл
func Write(doc *Document, path string) error {
	if doc.Version == "" {
		doc.Version = Version
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
