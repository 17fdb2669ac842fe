package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"facequant/internal/domain"
	"facequant/internal/logging"
	"facequant/internal/metrics"
	"facequant/internal/similarity"
)

// CompareRequest is a validated compare payload.
type CompareRequest struct {
	FaceLogin      []float64
	FaceReg        []float64
	Representation domain.Representation // Empty selects the default
}

// CompareUseCase decides whether two stored embeddings match.
type CompareUseCase struct {
	comparator *similarity.Comparator
	defaultRep domain.Representation
	dims       map[domain.Representation]int
	logger     logrus.FieldLogger
	metrics    *metrics.Metrics
}

// NewCompareUseCase creates a new compare use case. dims may be nil when
// vector lengths are not known in advance.
func NewCompareUseCase(
	comparator *similarity.Comparator,
	defaultRep domain.Representation,
	dims map[domain.Representation]int,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
) *CompareUseCase {
	if m == nil {
		m = metrics.Noop()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if defaultRep == "" {
		defaultRep = domain.RepresentationQuantized
	}
	return &CompareUseCase{
		comparator: comparator,
		defaultRep: defaultRep,
		dims:       dims,
		logger:     logger,
		metrics:    m,
	}
}

func (u *CompareUseCase) Compare(ctx context.Context, req CompareRequest) (domain.ComparisonResult, error) {
	rep := req.Representation
	if rep == "" {
		rep = u.defaultRep
	}

	if len(req.FaceLogin) != len(req.FaceReg) {
		return domain.ComparisonResult{}, fmt.Errorf("face_login vs face_reg: %w",
			&domain.ShapeMismatchError{Left: len(req.FaceLogin), Right: len(req.FaceReg)})
	}
	if want, ok := u.dims[rep]; ok && want > 0 && len(req.FaceLogin) != want {
		return domain.ComparisonResult{}, fmt.Errorf("%s embedding: %w",
			rep, &domain.ShapeMismatchError{Left: len(req.FaceLogin), Right: want})
	}

	result, err := u.comparator.Compare(rep, req.FaceLogin, req.FaceReg)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	u.metrics.ObserveCompare(string(rep), result.Match, result.Distance)
	u.logger.WithFields(logrus.Fields{
		"representation": rep,
		"distance":       result.Distance,
		"threshold":      result.Threshold,
		"match":          result.Match,
	}).Debug("embeddings compared")

	return result, nil
}

// DefaultRepresentation returns the representation used when a request
// does not name one.
func (u *CompareUseCase) DefaultRepresentation() domain.Representation {
	return u.defaultRep
}
