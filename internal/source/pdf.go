package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/compositor/internal/timebase"
)

const DefaultDPI = 150

// FitzPDFSource отдает страницы PDF как кадры, по одной в секунду.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
	info Info
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	s := &FitzPDFSource{doc: doc, path: path, dpi: dpi}
	s.info = Info{Frames: doc.NumPage(), Rate: timebase.FPS(1), HasVideo: true}
	if s.info.Frames > 0 {
		// Размер кадра берем по первой странице с учетом DPI
		b, err := doc.Bound(0)
		if err != nil {
			doc.Close()
			return nil, err
		}
		scale := float64(dpi) / 72
		s.info.Size = image.Pt(int(float64(b.Dx())*scale), int(float64(b.Dy())*scale))
	}
	return s, nil
}

func (f *FitzPDFSource) Info() Info { return f.info }

func (f *FitzPDFSource) Frame(index int) (image.Image, error) {
	if index < 0 || index >= f.info.Frames {
		return nil, fmt.Errorf("%w: page %d of %d", ErrFrameOutOfRange, index, f.info.Frames)
	}
	return f.doc.ImageDPI(index, float64(f.dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
