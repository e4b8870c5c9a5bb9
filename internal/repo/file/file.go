// Package file keeps each record as <dir>/<collection>/<id>.json.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

const ext = ".json"

var ErrInvalidName = errors.New("invalid collection or id")

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection, id string) (string, error) {
	if !safeName(collection) || !safeName(id) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, collection, id)
	}
	return filepath.Join(s.dir, collection, id+ext), nil
}

func safeName(n string) bool {
	return n != "" && n != "." && n != ".." && !strings.ContainsAny(n, `/\`)
}

func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	if !safeName(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, collection)
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) Read(ctx context.Context, collection, id string) ([]byte, error) {
	p, err := s.path(collection, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data []byte) error {
	p, err := s.path(collection, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", collection, err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return repo.ErrExists
	}
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return f.Close()
}

// Update writes to a temp file and renames it over the record so readers
// never see a half-written document.
func (s *Store) Update(ctx context.Context, collection, id string, data []byte) error {
	p, err := s.path(collection, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return repo.ErrNotFound
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), id+".*.tmp")
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	p, err := s.path(collection, id)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return repo.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}
