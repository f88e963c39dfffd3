package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
)

// HeadReader is the slice of the object store the sampler needs: a bounded
// read of the first maxBytes of an object.
type HeadReader interface {
	ReadHead(ctx context.Context, key string, maxBytes int64) ([]byte, error)
}

// Sampler fetches a bounded prefix of a stored object and decodes it
// lossily: invalid UTF-8 sequences become U+FFFD instead of failing the
// classification. The byte budget, not a retry policy, is the cost control;
// a fetch failure is terminal.
type Sampler struct {
	store HeadReader
	cfg   Config
	log   *logger.Logger
}

func NewSampler(store HeadReader, cfg Config, log *logger.Logger) (*Sampler, error) {
	if store == nil {
		return nil, fmt.Errorf("head reader required")
	}
	if log != nil {
		log = log.With("service", "ClassifySampler")
	}
	return &Sampler{store: store, cfg: cfg, log: log}, nil
}

// Sample reads up to sampleBytes (clamped to the configured range; <=0 means
// the default budget) from the start of the object.
func (s *Sampler) Sample(ctx context.Context, objectKey string, sampleBytes int64) (string, error) {
	budget := s.cfg.ClampSampleBytes(sampleBytes)
	raw, err := s.store.ReadHead(ctx, objectKey, budget)
	if err != nil {
		return "", fmt.Errorf("failed to sample object %q: %w", objectKey, err)
	}
	text := strings.ToValidUTF8(string(raw), "�")
	if s.log != nil {
		s.log.Debug("sampled object head", "object_key", objectKey, "budget", budget, "bytes", len(raw))
	}
	return text, nil
}
