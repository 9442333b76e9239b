// Package storage manages the transient working files a campaign produces
// before they are published and removed.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scratch persists working files onto the local filesystem under a single
// root. Every file it holds is transient: written during a campaign run and
// removed once the results are published.
type Scratch struct {
	root string
}

// NewScratch initializes a Scratch rooted at root.
func NewScratch(root string) (*Scratch, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure root: %w", err)
	}
	return &Scratch{root: root}, nil
}

// Root returns the configured root directory.
func (s *Scratch) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Dir ensures the directory for the given relative key exists and returns
// its absolute path.
func (s *Scratch) Dir(key string) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	return full, nil
}

// Write persists the provided bytes at the given relative key and returns
// the absolute file path. Keys are cleaned to prevent directory traversal.
func (s *Scratch) Write(key string, data []byte) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return full, nil
}

// Remove deletes the file or directory tree at the given relative key.
func (s *Scratch) Remove(key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

func (s *Scratch) resolve(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no scratch store configured")
	}
	cleaned, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// sanitizeKey normalizes a key and prevents escaping the scratch root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
