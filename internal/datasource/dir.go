package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirSource reads objects from a local directory tree.
type DirSource struct {
	root string
}

// NewDirSource returns a source rooted at dir, which must exist.
func NewDirSource(dir string) (*DirSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &DirSource{root: abs}, nil
}

// Path returns the filesystem path of key.
func (s *DirSource) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Root returns the directory the source reads from.
func (s *DirSource) Root() string { return s.root }

// Open opens the file for key. Keys escaping the root are rejected.
func (s *DirSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(strings.TrimPrefix(key, "/")) {
		return nil, fmt.Errorf("invalid object key %q", key)
	}
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *DirSource) Type() SourceType { return SourceTypeDir }

func (s *DirSource) String() string { return s.root }
