package storage

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

type LocalStore struct {
	root   string
	tmp    string
	prefix string
}

// NewLocalStore serves files under root at the URL prefix (e.g. "/uploads").
// Partial writes are staged in a hidden sibling of root, so they are never
// reachable through the public prefix.
func NewLocalStore(root, prefix string) (*LocalStore, error) {
	root = filepath.Clean(root)
	tmp := filepath.Join(filepath.Dir(root), "."+filepath.Base(root)+"-tmp")
	for _, dir := range []string{root, tmp} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &LocalStore{root: root, tmp: tmp, prefix: strings.TrimRight(prefix, "/")}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Prefix() string {
	return s.prefix
}

func (s *LocalStore) abs(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(cleanRel(relPath)))
}

func (s *LocalStore) Put(_ context.Context, relPath string, r io.Reader, _ int64, _ string) error {
	target := s.abs(relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.tmp, "put-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", relPath, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", relPath, err)
	}
	return os.Rename(tmp.Name(), target)
}

func (s *LocalStore) Delete(_ context.Context, relPath string) error {
	if err := os.Remove(s.abs(relPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(relPath string) string {
	return s.prefix + cleanRel(relPath)
}

func (s *LocalStore) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}
