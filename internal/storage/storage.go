// File path: internal/storage/storage.go
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/geekygoose/gander/internal/common"
)

// ErrNotFound is returned when no blob exists for a key.
var ErrNotFound = errors.New("blob not found")

// Store is a content-addressed blob store on the local filesystem. Keys are
// the hex SHA-256 of the content, sharded by the first two characters, so
// identical uploads share one blob.
type Store struct {
	root string
}

// New creates the blob root directory if needed.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	common.Logger().Info("storage: blob store ready", "root", abs)
	return &Store{root: abs}, nil
}

// Put writes content and returns its key. Writing the same content twice is
// a no-op returning the same key.
func (s *Store) Put(content []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage not configured")
	}
	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])
	path := s.pathFor(key)
	if _, err := os.Stat(path); err == nil {
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalise blob: %w", err)
	}
	return key, nil
}

// Get reads the content stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage not configured")
	}
	if !validKey(key) {
		return nil, fmt.Errorf("invalid blob key %q", key)
	}
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob for key. Deleting a missing blob is not an error.
func (s *Store) Delete(key string) error {
	if s == nil {
		return errors.New("storage not configured")
	}
	if !validKey(key) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	if err := os.Remove(s.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.root, key[:2], key)
}

func validKey(key string) bool {
	if len(key) != 64 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
