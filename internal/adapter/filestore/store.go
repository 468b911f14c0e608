package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragchat/internal/domain"
)

const recordExt = ".json"

// Store keeps one JSON file per document under a directory, named <id>.json.
// Writes go to a temp file first and are renamed into place.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Put(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	path, err := s.path(doc.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *Store) Get(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	path, err := s.path(id)
	if err != nil {
		return domain.Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return domain.Document{}, &domain.DocumentReadError{Key: id, Err: err}
	}
	return decode(id, data)
}

// List reads every record in filename order. Unreadable records are returned
// as read errors instead of failing the listing.
func (s *Store) List(ctx context.Context) ([]domain.Document, []*domain.DocumentReadError, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read store dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		docs    []domain.Document
		skipped []*domain.DocumentReadError
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		id := strings.TrimSuffix(name, recordExt)
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			skipped = append(skipped, &domain.DocumentReadError{Key: id, Err: err})
			continue
		}
		doc, err := decode(id, data)
		if err != nil {
			var readErr *domain.DocumentReadError
			if errors.As(err, &readErr) {
				skipped = append(skipped, readErr)
				continue
			}
			return nil, nil, err
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: unsafe id %q", domain.ErrInvalidDocument, id)
	}
	return filepath.Join(s.dir, id+recordExt), nil
}

func decode(id string, data []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, &domain.DocumentReadError{Key: id, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return domain.Document{}, &domain.DocumentReadError{Key: id, Err: err}
	}
	return doc, nil
}
