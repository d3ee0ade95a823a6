package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	embeddingKeyPrefix  = "genstack:embedding:"
	defaultEmbeddingTTL = 24 * time.Hour
)

// CachedStore caches embeddings in Redis in front of another Store. Repeated
// queries skip the embedding call entirely. Cache failures are logged and
// fall through to the inner store; the cache must never break retrieval.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner with a Redis embedding cache. A zero ttl uses
// the default of 24 hours.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}

	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Embed returns the cached vector for text when present, otherwise embeds
// via the inner store and caches the result.
func (s *CachedStore) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingKey(text)

	cached, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var embedding []float32
		if err := json.Unmarshal(cached, &embedding); err == nil && len(embedding) > 0 {
			return embedding, nil
		}

		s.logger.DebugContext(ctx, "discarding malformed cached embedding", "key", key)
	} else if err != redis.Nil {
		s.logger.DebugContext(ctx, "embedding cache read failed", "error", err)
	}

	embedding, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(embedding)
	if err == nil {
		if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
			s.logger.DebugContext(ctx, "embedding cache write failed", "error", err)
		}
	}

	return embedding, nil
}

// Search delegates to the inner store.
func (s *CachedStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]models.Passage, error) {
	return s.inner.Search(ctx, embedding, opts)
}

func embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))

	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}
