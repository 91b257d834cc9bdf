package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const settingsFile = "settings.yaml"

type fileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*fileStore)(nil)

// NewFile returns a Store rooted at dir, creating it with owner-only permissions.
func NewFile(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "store: creating %s", dir)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) loadSettings() (map[string]string, error) {
	settings := make(map[string]string)
	buf, err := os.ReadFile(filepath.Join(s.dir, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: reading settings")
	}
	if err := yaml.Unmarshal(buf, &settings); err != nil {
		return nil, errors.Wrap(err, "store: decoding settings")
	}
	return settings, nil
}

func (s *fileStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.loadSettings()
	if err != nil {
		return "", false, err
	}
	val, ok := settings[key]
	return val, ok, nil
}

func (s *fileStore) SaveSettings(_ context.Context, set map[string]string, remove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.loadSettings()
	if err != nil {
		return err
	}
	for k, v := range set {
		settings[k] = v
	}
	for _, k := range remove {
		delete(settings, k)
	}
	buf, err := yaml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "store: encoding settings")
	}
	return writeAtomic(filepath.Join(s.dir, settingsFile), buf)
}

func (s *fileStore) blobPath(name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)), nil
}

func (s *fileStore) ReadBlob(_ context.Context, name string) ([]byte, error) {
	p, err := s.blobPath(name)
	if err != nil {
		return nil, err
	}
	buf, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: reading %s", name)
	}
	return buf, nil
}

func (s *fileStore) WriteBlob(_ context.Context, name string, data []byte) error {
	p, err := s.blobPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return errors.Wrapf(err, "store: creating directory for %s", name)
	}
	return writeAtomic(p, data)
}

func (s *fileStore) DeleteBlob(_ context.Context, name string) error {
	p, err := s.blobPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "store: removing %s", name)
	}
	return nil
}

func (s *fileStore) Close() error {
	return nil
}

// writeAtomic writes data to a temp file beside path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "store: creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "store: writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "store: closing temp file")
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return errors.Wrap(err, "store: setting permissions")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "store: renaming temp file")
	}
	return nil
}
