// Package storage holds the blob store behind document uploads. Keys are
// namespaced as "<studentID>/<opaque-name>"; each opaque name embeds a
// timestamp and a random id, so uploads are append-only and concurrent
// uploads by the same student never collide.
package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidKey is returned for keys that are empty, absolute, or try
	// to escape the namespace with dot segments.
	ErrInvalidKey = errors.New("invalid blob key")
	// ErrNotFound is returned when no blob exists at the key.
	ErrNotFound = errors.New("blob not found")
	// ErrBadSignature is returned when a signed URL fails verification.
	ErrBadSignature = errors.New("bad or expired signature")
)

// BlobStore is the interface the rest of the application talks to. The local
// disk driver implements it; a hosted object store could replace it without
// touching callers.
type BlobStore interface {
	Put(key string, r io.Reader) (size int64, err error)
	Get(key string) (io.ReadCloser, error)
	Remove(key string) error
	SignedURL(key string, ttl time.Duration) (string, error)
}

// NewKey builds a fresh blob key owned by the given student. The first path
// segment is the owner id; the rest is opaque.
func NewKey(studentID uint, fileName string) string {
	ext := path.Ext(fileName)
	return fmt.Sprintf("%d/%d-%s%s", studentID, time.Now().UnixNano(), uuid.NewString(), ext)
}
