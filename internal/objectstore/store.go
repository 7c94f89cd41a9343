package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get for URLs the store does not hold.
var ErrNotFound = errors.New("object not found")

// Store saves objects under a key and serves them back by public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// Disk stores objects below Dir and exposes them as BaseURL/uploads/<key>.
type Disk struct {
	Dir     string
	BaseURL string
}

// NewDisk creates Dir if needed.
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// URLPrefix is the public prefix of every object URL.
func (d *Disk) URLPrefix() string {
	return d.BaseURL + "/uploads/"
}

func (d *Disk) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	p, err := d.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("disk store: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("disk store: %w", err)
	}
	return d.URLPrefix() + strings.TrimPrefix(path.Clean("/"+key), "/"), nil
}

func (d *Disk) Get(_ context.Context, url string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(url, d.URLPrefix())
	if !ok {
		return nil, ErrNotFound
	}
	p, err := d.path(key)
	if err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (d *Disk) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || key == "" {
		return "", fmt.Errorf("disk store: invalid key %q", key)
	}
	return filepath.Join(d.Dir, filepath.FromSlash(clean)), nil
}
