package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
)

// FileKV persists keys to a single JSON object on disk, the CLI's analogue of
// browser local storage. Every write rewrites the file through a temp file + rename.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV returns a FileKV for path. The file is created lazily on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (f *FileKV) Path() string { return f.path }

var errCorrupt = errors.New("corrupt credentials file")

func (f *FileKV) load() (map[string]string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", f.path, errCorrupt, err)
	}
	return m, nil
}

// loadForWrite is load for Set. A file that does not decode is
// replaced on the next write instead of blocking it.
func (f *FileKV) loadForWrite() (map[string]string, error) {
	m, err := f.load()
	if errors.Is(err, errCorrupt) {
		logger.Warnf("credentials: %v, starting from an empty store", err)
		return map[string]string{}, nil
	}
	return m, err
}

func (f *FileKV) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.loadForWrite()
	if err != nil {
		return err
	}
	m[key] = string(value)
	return f.save(m)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	switch {
	case errors.Is(err, errCorrupt):
		logger.Warnf("credentials: %v, rewriting as empty", err)
		return f.save(map[string]string{})
	case err != nil:
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return f.save(m)
}
