package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"facequant/internal/adapter/cache"
	"facequant/internal/adapter/encoder"
	"facequant/internal/domain"
	"facequant/internal/logging"
	"facequant/internal/metrics"
	"facequant/internal/port"
	"facequant/internal/quantize"
)

// EmbedUseCase runs image -> encoder -> quantizer -> optional reducer.
type EmbedUseCase struct {
	encoder     port.FaceEncoder
	quantizer   *quantize.Quantizer
	reducer     port.Reducer
	cache       port.EmbeddingCache
	logger      logrus.FieldLogger
	metrics     *metrics.Metrics
	fingerprint string
}

// NewEmbedUseCase creates a new embed use case. reducer and embCache may be nil.
func NewEmbedUseCase(
	enc port.FaceEncoder,
	quantizer *quantize.Quantizer,
	reducer port.Reducer,
	embCache port.EmbeddingCache,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
) *EmbedUseCase {
	if m == nil {
		m = metrics.Noop()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	u := &EmbedUseCase{
		encoder:   enc,
		quantizer: quantizer,
		reducer:   reducer,
		cache:     embCache,
		logger:    logger,
		metrics:   m,
	}
	u.fingerprint = u.computeFingerprint()
	return u
}

// Embed produces the representation this process emits for image.
func (u *EmbedUseCase) Embed(ctx context.Context, image []byte) (*domain.EmbedResult, error) {
	result, err := u.embed(ctx, image)
	if err != nil {
		kind, _ := domain.KindOf(err)
		outcome := string(kind)
		if outcome == "" {
			outcome = "error"
		}
		u.metrics.ObserveEmbed(outcome)
		return nil, err
	}
	u.metrics.ObserveEmbed("ok")
	return result, nil
}

func (u *EmbedUseCase) embed(ctx context.Context, image []byte) (*domain.EmbedResult, error) {
	info, err := encoder.ValidateImage(image)
	if err != nil {
		return nil, err
	}

	key := cache.Key(image, u.fingerprint)
	if u.cache != nil {
		cached, hit, err := u.cache.Get(ctx, key)
		if err != nil {
			u.logger.WithError(err).Warn("embedding cache lookup failed")
		}
		u.metrics.ObserveCache(hit)
		if hit {
			return cached, nil
		}
	}

	start := time.Now()
	raw, err := u.encoder.Encode(ctx, image)
	u.metrics.ObserveEncoder(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to encode face: %w", err)
	}

	quantized, err := u.quantizer.Compress(raw)
	if err != nil {
		return nil, err
	}

	result := &domain.EmbedResult{
		Representation: domain.RepresentationQuantized,
		Quantized:      quantized,
		Model:          u.encoder.ModelName(),
	}

	if u.reducer != nil {
		reduced, err := u.reducer.Reduce(quantized)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce embedding: %w", err)
		}
		result.Representation = domain.RepresentationReduced
		result.Quantized = nil
		result.Reduced = reduced
	}

	if u.cache != nil {
		if err := u.cache.Put(ctx, key, result); err != nil {
			u.logger.WithError(err).Warn("embedding cache store failed")
		}
	}

	u.logger.WithFields(logrus.Fields{
		"format":         info.Format,
		"width":          info.Width,
		"height":         info.Height,
		"dimension":      len(raw),
		"representation": result.Representation,
		"elapsed":        time.Since(start),
	}).Debug("embedding computed")

	return result, nil
}

// Representation returns the representation Embed emits.
func (u *EmbedUseCase) Representation() domain.Representation {
	if u.reducer != nil {
		return domain.RepresentationReduced
	}
	return domain.RepresentationQuantized
}

// ExpectedDimensions returns the known vector length per representation.
// Unknown lengths are omitted.
func (u *EmbedUseCase) ExpectedDimensions() map[domain.Representation]int {
	dims := make(map[domain.Representation]int)
	if d := u.encoder.Dimension(); d > 0 {
		dims[domain.RepresentationQuantized] = d
	}
	if u.reducer != nil {
		dims[domain.RepresentationQuantized] = u.reducer.InputDimension()
		dims[domain.RepresentationReduced] = u.reducer.OutputDimension()
	}
	return dims
}

// EncoderName returns the model name reported by the face encoder.
func (u *EmbedUseCase) EncoderName() string {
	return u.encoder.ModelName()
}

// Fingerprint identifies every setting that changes Embed's output.
func (u *EmbedUseCase) Fingerprint() string {
	return u.fingerprint
}

func (u *EmbedUseCase) computeFingerprint() string {
	reducer := "none"
	if u.reducer != nil {
		reducer = u.reducer.Fingerprint()
	}
	data := strconv.FormatFloat(u.quantizer.Base(), 'g', -1, 64) + "|" +
		strconv.FormatFloat(u.quantizer.Bias(), 'g', -1, 64) + "|" +
		u.encoder.ModelName() + "|" + strconv.Itoa(u.encoder.Dimension()) + "|" + reducer
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
