package cli

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"facequant/config"
	"facequant/internal/adapter/cache"
	"facequant/internal/adapter/encoder"
	"facequant/internal/adapter/reducer"
	"facequant/internal/adapter/store"
	"facequant/internal/metrics"
	"facequant/internal/port"
	"facequant/internal/quantize"
	"facequant/internal/similarity"
	"facequant/internal/usecase"
)

// pipeline is the set of use cases built from a config. Close releases the
// persistent cache, if any.
type pipeline struct {
	embed   *usecase.EmbedUseCase
	compare *usecase.CompareUseCase
	bolt    *store.BoltCache
}

func (p *pipeline) Close() error {
	if p.bolt != nil {
		return p.bolt.Close()
	}
	return nil
}

func newEncoder(cfg *config.Config, logger logrus.FieldLogger) (port.FaceEncoder, error) {
	switch cfg.Encoder.Provider {
	case "remote":
		return encoder.NewRemoteEncoder(encoder.RemoteOptions{
			BaseURL:            cfg.Encoder.BaseURL,
			Model:              cfg.Encoder.Model,
			Dimension:          cfg.Encoder.Dimension,
			Timeout:            cfg.Encoder.Timeout,
			RetryMaxElapsed:    cfg.Encoder.RetryMaxElapsed,
			BreakerFailures:    cfg.Encoder.BreakerFailures,
			BreakerOpenTimeout: cfg.Encoder.BreakerOpenAfter,
			Logger:             logger,
		})
	case "mock":
		return encoder.NewMockEncoder(cfg.Encoder.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported encoder provider: %s", cfg.Encoder.Provider)
	}
}

func newComparator(cfg *config.Config) (*similarity.Comparator, error) {
	return similarity.NewComparator(similarity.Thresholds{
		Quantized: cfg.Thresholds.Quantized,
		Reduced:   cfg.Thresholds.Reduced,
	})
}

// resolvePath makes relative config paths relative to the data directory.
func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func buildPipeline(cfg *config.Config, dir string, logger *logrus.Logger, m *metrics.Metrics) (*pipeline, error) {
	enc, err := newEncoder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	quantizer, err := quantize.New(cfg.Quantizer.Base, cfg.Quantizer.Bias)
	if err != nil {
		return nil, fmt.Errorf("invalid quantizer: %w", err)
	}

	var red port.Reducer
	if cfg.Reducer.ModelPath != "" {
		pca, err := reducer.Load(resolvePath(dir, cfg.Reducer.ModelPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load reducer: %w", err)
		}
		if d := enc.Dimension(); d > 0 && d != pca.InputDimension() {
			return nil, fmt.Errorf("reducer expects %d-d input but encoder produces %d-d", pca.InputDimension(), d)
		}
		red = pca
		logger.WithFields(logrus.Fields{
			"model":  cfg.Reducer.ModelPath,
			"input":  pca.InputDimension(),
			"output": pca.OutputDimension(),
		}).Info("reducer loaded")
	}

	p := &pipeline{}
	var embCache port.EmbeddingCache
	if cfg.Cache.Enabled {
		if cfg.Cache.Persist {
			path := resolvePath(dir, cfg.Cache.Path)
			if path == "" {
				if err := config.EnsureDataDir(dir); err != nil {
					return nil, fmt.Errorf("failed to create data directory: %w", err)
				}
				path = config.CacheDBPath(dir)
			}
			p.bolt, err = store.NewBoltCache(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open cache: %w", err)
			}
			embCache = p.bolt
		} else {
			embCache = cache.NewEmbeddingCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
		}
	}

	p.embed = usecase.NewEmbedUseCase(enc, quantizer, red, embCache, logger, m)

	if p.bolt != nil {
		result, err := p.bolt.Prepare(p.embed.Fingerprint())
		if err != nil {
			p.bolt.Close()
			return nil, fmt.Errorf("failed to prepare cache: %w", err)
		}
		if result.NeedsRebuild {
			logger.WithField("reason", result.Reason).Warn("embedding cache cleared")
		}
	}

	comparator, err := newComparator(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.compare = usecase.NewCompareUseCase(comparator, p.embed.Representation(), p.embed.ExpectedDimensions(), logger, m)

	return p, nil
}
