package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/compositor/internal/timebase"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func isImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// ImageSource отдает одиночную картинку или отсортированную по имени
// последовательность файлов из каталога.
type ImageSource struct {
	paths []string
	info  Info
}

func NewImageSource(path string, rate timebase.Rate) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImage(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrUnsupported, path)
	}
	if !rate.Valid() {
		rate = timebase.FPS(1)
	}

	s := &ImageSource{paths: paths}
	size, err := s.dimensions(0)
	if err != nil {
		return nil, err
	}
	s.info = Info{Size: size, Frames: len(paths), Rate: rate, HasVideo: true}
	return s, nil
}

func (s *ImageSource) Info() Info { return s.info }

func (s *ImageSource) dimensions(index int) (image.Point, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return image.Point{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, fmt.Errorf("%s: %w", s.paths[index], err)
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

func (s *ImageSource) Frame(index int) (image.Image, error) {
	if index < 0 || index >= len(s.paths) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, index, len(s.paths))
	}
	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.paths[index], err)
	}
	return img, nil
}

func (s *ImageSource) Close() error {
	return nil
}
