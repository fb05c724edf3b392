package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/klog/v2"
)

// Load reads the settings file at path on top of Defaults. A missing file
// yields the defaults. On a decode error the defaults are returned together
// with an error wrapping ErrMalformed.
func Load(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		klog.V(2).InfoS("Settings file not found, using defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}

	loaded := Defaults()
	if err := loaded.UnmarshalJSON(data); err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return loaded, nil
}

// Save writes s to path, replacing the file atomically.
func Save(path string, s Settings) error {
	data, err := marshalIndented(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".liblibai-settings-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename has succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace settings %s: %w", path, err)
	}

	klog.V(2).InfoS("Settings saved", "path", path)
	return nil
}

func marshalIndented(s Settings) ([]byte, error) {
	compact, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Store is a settings file at a fixed path. Its methods serialize access
// from a single process.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store for path. An empty path selects DefaultFileName
// in the working directory.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFileName
	}
	return &Store{path: path}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Load(s.path)
}

// Save replaces the settings file with v.
func (s *Store) Save(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Save(s.path, v)
}

// Update loads the file, applies fn and writes the result back, keeping
// every setting and unknown key fn does not touch. A malformed file is left
// untouched and reported, as is any error from fn.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := fn(&current); err != nil {
		return err
	}
	return Save(s.path, current)
}

// SaveCredentials updates only the API keys.
func (s *Store) SaveCredentials(ctx context.Context, accessKey, secretKey string) error {
	return s.Update(ctx, func(current *Settings) error {
		current.AccessKey = accessKey
		current.SecretKey = secretKey
		return nil
	})
}
