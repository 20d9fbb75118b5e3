package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jo-hoe/melonripe/internal/backend/inference"
)

const (
	TypeNone  = "none"
	TypeRedis = "redis"

	keyPrefix = "prediction:"
)

// PredictionCache stores predictions keyed by upload content.
type PredictionCache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, key string) (prediction *inference.Prediction, ok bool, err error)
	Set(ctx context.Context, key string, prediction inference.Prediction) error
	Close() error
}

type Options struct {
	Type     string
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Key derives the cache key for raw upload bytes. scope names the model and
// preprocessing, so a changed configuration never reads older predictions.
func Key(image []byte, scope string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write(image)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func New(options Options) (PredictionCache, error) {
	switch options.Type {
	case "", TypeNone:
		return NoopCache{}, nil
	case TypeRedis:
		return NewRedisCache(options), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", options.Type)
	}
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*inference.Prediction, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, string, inference.Prediction) error {
	return nil
}

func (NoopCache) Close() error {
	return nil
}
