package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"facequant/internal/domain"
)

var (
	bucketEmbeddings = []byte("embeddings")
	bucketMeta       = []byte("meta")
)

// BoltCache persists embed results in a bbolt database, keyed by content
// digest. It caches derived values only.
type BoltCache struct {
	db *bbolt.DB
}

func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEmbeddings, bucketMeta} {
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

	return &BoltCache{db: db}, nil
}

type storedResult struct {
	Representation string    `json:"rep"`
	Quantized      []int64   `json:"q,omitempty"`
	Reduced        []float64 `json:"r,omitempty"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      int64     `json:"created_at"`
}

func (s *BoltCache) Get(ctx context.Context, key string) (*domain.EmbedResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var result *domain.EmbedResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}
		var stored storedResult
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("corrupt cache entry %s: %w", key, err)
		}
		result = &domain.EmbedResult{
			Representation: domain.Representation(stored.Representation),
			Quantized:      stored.Quantized,
			Reduced:        stored.Reduced,
			Model:          stored.Model,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, result != nil, nil
}

func (s *BoltCache) Put(ctx context.Context, key string, result *domain.EmbedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := storedResult{
		Representation: string(result.Representation),
		Quantized:      result.Quantized,
		Reduced:        result.Reduced,
		Model:          result.Model,
		CreatedAt:      time.Now().Unix(),
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), data)
	})
}

// Count returns the number of cached results.
func (s *BoltCache) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltCache) Close() error {
	return s.db.Close()
}
