package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes media below a directory that the server exposes at
// URLPrefix.
type LocalStore struct {
	Root      string
	URLPrefix string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir, urlPrefix string) *LocalStore {
	return &LocalStore{Root: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

// Put writes data to Root/key.
func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := writeBytesToFile(dst, data); err != nil {
		return "", fmt.Errorf("write media %s: %w", key, err)
	}
	return s.URLPrefix + "/" + strings.TrimLeft(key, "/"), nil
}

// Delete removes Root/key.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove media %s: %w", key, err)
	}
	return nil
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
