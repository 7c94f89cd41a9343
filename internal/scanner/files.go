package scanner

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// FileDevice replays image files as camera frames. Path is a single image
// or a directory whose images are played in name order.
type FileDevice struct {
	Path string
}

func (d FileDevice) Open(ctx context.Context) (Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(d.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return &fileCamera{paths: []string{d.Path}}, nil
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(d.Path, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", d.Path)
	}
	sort.Strings(paths)
	return &fileCamera{paths: paths}, nil
}

type fileCamera struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

func (c *fileCamera) Frame() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("camera closed")
	}
	if c.next >= len(c.paths) {
		return nil, io.EOF
	}
	p := c.paths[c.next]
	c.next++
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return img, nil
}

func (c *fileCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
