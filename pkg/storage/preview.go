package storage

import (
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// previewMaxDim bounds the longest side of generated review thumbnails.
const previewMaxDim = 512

// Preview renders a bounded JPEG thumbnail next to an image blob so
// registrars can eyeball uploads without downloading them. Returns the
// preview's key. Non-image blobs make imaging.Open fail, which callers
// treat as "no preview".
func (l *Local) Preview(key string) (string, error) {
	src, err := l.fullPath(key)
	if err != nil {
		return "", err
	}
	img, err := imaging.Open(src)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	if b.Dx() > previewMaxDim || b.Dy() > previewMaxDim {
		img = imaging.Fit(img, previewMaxDim, previewMaxDim, imaging.Lanczos)
	}
	previewKey := strings.TrimSuffix(key, filepath.Ext(key)) + ".preview.jpg"
	dst, err := l.fullPath(previewKey)
	if err != nil {
		return "", err
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(80)); err != nil {
		return "", err
	}
	return previewKey, nil
}
