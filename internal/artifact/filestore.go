package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// FileStore keeps one file per key in a single directory.
type FileStore struct {
	dir string
}

// DefaultDir is $XDG_DATA_HOME/safeagree/artifacts.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "safeagree", "artifacts")
}

// NewFileStore creates dir when missing. An empty dir selects DefaultDir.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes body under key. The object becomes visible atomically and an
// existing key is never replaced: ErrExists is returned instead.
func (s *FileStore) Put(ctx context.Context, key string, body []byte) error {
	if err := s.ready(ctx, key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Link(tmpPath, s.path(key)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ready(ctx, key); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return body, nil
}

// Touch sets the modification time of key to now. A missing key yields
// ErrNotFound.
func (s *FileStore) Touch(ctx context.Context, key string) error {
	if err := s.ready(ctx, key); err != nil {
		return err
	}
	now := time.Now()
	if err := os.Chtimes(s.path(key), now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("touch %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := s.ready(ctx, key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns every published object sorted by key.
func (s *FileStore) List(ctx context.Context) ([]ObjectInfo, error) {
	if s == nil {
		return nil, fmt.Errorf("artifact store is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifact dir: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		objects = append(objects, ObjectInfo{
			Key:        entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *FileStore) ready(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("artifact store is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ValidateKey(key)
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key)
}
