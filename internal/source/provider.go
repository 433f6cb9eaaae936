package source

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ivlev/compositor/internal/timebase"
)

const DefaultCacheSize = 64

type frameKey struct {
	ref   string
	index int
}

// Provider opens media references relative to a project directory and
// shares one decoded-frame cache between every source it opens.
type Provider struct {
	Dir        string
	DPI        int
	SampleRate int
	Rate       timebase.Rate

	cache *lru.Cache[frameKey, image.Image]
	log   *slog.Logger
}

func NewProvider(dir string, cacheSize int, log *slog.Logger) *Provider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	cache, _ := lru.New[frameKey, image.Image](cacheSize)
	return &Provider{Dir: dir, DPI: DefaultDPI, SampleRate: 48000, cache: cache, log: log}
}

func (p *Provider) resolve(ref string) string {
	if filepath.IsAbs(ref) || p.Dir == "" {
		return ref
	}
	return filepath.Join(p.Dir, ref)
}

// Open accepts "tone:<hz>", PDF files, images, image directories and audio
// files ffmpeg can decode.
func (p *Provider) Open(ref string) (Source, error) {
	if strings.HasPrefix(ref, "tone:") {
		return parseTone(ref)
	}
	path := p.resolve(ref)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var src Source
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case fi.IsDir() || isImage(path):
		src, err = NewImageSource(path, p.Rate)
	case ext == ".pdf":
		src, err = NewFitzPDFSource(path, p.DPI)
	case isAudio(path):
		src, err = DecodeAudio(context.Background(), path, p.SampleRate)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref)
	}
	if err != nil {
		return nil, err
	}
	p.log.Debug("Source opened", "ref", ref, "frames", src.Info().Frames)
	if !src.Info().HasVideo {
		return src, nil
	}
	return &cached{Source: src, ref: path, cache: p.cache}, nil
}

// Stats returns the number of cached frames.
func (p *Provider) Stats() int { return p.cache.Len() }

// cached memoizes decoded frames in the provider's cache.
type cached struct {
	Source
	ref   string
	cache *lru.Cache[frameKey, image.Image]
}

func (c *cached) Frame(index int) (image.Image, error) {
	k := frameKey{ref: c.ref, index: index}
	if img, ok := c.cache.Get(k); ok {
		return img, nil
	}
	img, err := c.Source.Frame(index)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, img)
	return img, nil
}
