package port

import (
	"context"

	"facequant/internal/domain"
)

// EmbeddingCache stores embed pipeline results keyed by content digest.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) (*domain.EmbedResult, bool, error)

	Put(ctx context.Context, key string, result *domain.EmbedResult) error
}
