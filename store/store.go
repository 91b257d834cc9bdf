// Package store persists small key-value settings and opaque blobs for the
// API client: session tokens, the encrypted credential record, and the
// response cache index and payloads.
//
// Three backends are provided. [NewMemory] keeps everything in process and is
// meant for tests. [NewFile] writes settings to a YAML document and each blob
// to its own file under a directory. [NewRedis] keeps settings in a hash and
// blobs in plain keys, so several processes on one host can share state.
package store

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by ReadBlob when no blob exists for the name.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidName is returned for blob names that escape the store root.
	ErrInvalidName = errors.New("store: invalid blob name")
)

// DefaultQueryTimeout bounds each operation of I/O-backed stores.
const DefaultQueryTimeout = 5 * time.Second

// Store is the persistence service injected into the session manager and the response cache.
type Store interface {
	// GetSetting returns the value for key and whether it was present.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	// SaveSettings writes every entry of set and removes every key of remove as one commit.
	SaveSettings(ctx context.Context, set map[string]string, remove []string) error
	// ReadBlob returns the blob stored under name or ErrNotFound.
	ReadBlob(ctx context.Context, name string) ([]byte, error)
	// WriteBlob replaces the blob stored under name.
	WriteBlob(ctx context.Context, name string, data []byte) error
	// DeleteBlob removes the blob stored under name. Missing blobs are not an error.
	DeleteBlob(ctx context.Context, name string) error
	// Close releases resources held by the store.
	Close() error
}

// GetInt reads an integer setting. Missing or malformed values read as zero.
func GetInt(ctx context.Context, s Store, key string) (int64, error) {
	val, ok, err := s.GetSetting(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// cleanName validates a slash separated blob name and returns its canonical form.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return cleaned, nil
}
