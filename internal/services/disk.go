package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
)

// DiskStorage keeps clip audio as files under a root directory and hands out file:// URIs.
type DiskStorage struct {
	root string
}

// NewDiskStorage creates the root directory if needed.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: storage directory", shared.ErrMissingArgument)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &DiskStorage{root: root}, nil
}

func (d *DiskStorage) Name() string { return "disk" }

// Root returns the absolute storage directory.
func (d *DiskStorage) Root() string { return d.root }

func (d *DiskStorage) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := d.resolve(filepath.FromSlash(key))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

func (d *DiskStorage) Get(ctx context.Context, uri string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	path, err := d.pathOf(uri)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", shared.ErrObjectNotFound, uri)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}

	return data, softcap.MimeType(path), nil
}

func (d *DiskStorage) Delete(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := d.pathOf(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return nil
}

func (d *DiskStorage) pathOf(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("%w: not a file uri: %s", shared.ErrInvalidArgument, uri)
	}
	return d.resolve(filepath.FromSlash(u.Path))
}

// resolve maps p (relative, or absolute under root) to a path that stays inside root.
func (d *DiskStorage) resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(d.root, p)
	}
	p = filepath.Clean(p)

	if p != d.root && !strings.HasPrefix(p, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes storage root: %s", shared.ErrInvalidArgument, p)
	}
	return p, nil
}
