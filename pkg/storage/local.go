package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local stores blobs under a base directory on disk and signs download URLs
// with an HMAC so files can be served without an authenticated session.
type Local struct {
	base      string
	secret    []byte
	urlPrefix string // e.g. "/files"
}

// NewLocal returns a disk-backed store rooted at base. urlPrefix is the
// route prefix signed URLs point at.
func NewLocal(base string, secret []byte, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Local{base: base, secret: secret, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// fullPath validates the key and maps it under base.
func (l *Local) fullPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.base, clean), nil
}

func (l *Local) Put(key string, r io.Reader) (int64, error) {
	p, err := l.fullPath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

func (l *Local) Get(key string) (io.ReadCloser, error) {
	p, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (l *Local) Remove(key string) error {
	p, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SignedURL returns "<urlPrefix>/<key>?exp=...&sig=..." valid for ttl.
func (l *Local) SignedURL(key string, ttl time.Duration) (string, error) {
	if _, err := l.fullPath(key); err != nil {
		return "", err
	}
	exp := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?exp=%d&sig=%s", l.urlPrefix, key, exp, l.sign(key, exp)), nil
}

// Verify checks the exp/sig pair produced by SignedURL.
func (l *Local) Verify(key, expStr, sig string) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if time.Now().Unix() > exp {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(l.sign(key, exp)), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

func (l *Local) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s|%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
