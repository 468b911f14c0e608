package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"ragchat/internal/domain"
)

var (
	bucketDocuments = []byte("documents")
	bucketMeta      = []byte("meta")
)

// BoltStore persists knowledge documents as JSON values keyed by document id.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Put writes the whole document in a single transaction, replacing any
// record with the same id.
func (s *BoltStore) Put(ctx context.Context, doc domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(doc.ID), data)
	})
}

func (s *BoltStore) Get(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		decoded, err := decodeDocument(id, data)
		if err != nil {
			return err
		}
		doc = decoded
		return nil
	})
	return doc, err
}

// List returns every readable document in key order. Records that cannot be
// decoded are reported separately and do not fail the listing.
func (s *BoltStore) List(ctx context.Context) ([]domain.Document, []*domain.DocumentReadError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		docs    []domain.Document
		skipped []*domain.DocumentReadError
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			doc, err := decodeDocument(string(k), v)
			if err != nil {
				var readErr *domain.DocumentReadError
				if errors.As(err, &readErr) {
					skipped = append(skipped, readErr)
					return nil
				}
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return docs, skipped, nil
}

func (s *BoltStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func decodeDocument(key string, data []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, &domain.DocumentReadError{Key: key, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return domain.Document{}, &domain.DocumentReadError{Key: key, Err: err}
	}
	return doc, nil
}
