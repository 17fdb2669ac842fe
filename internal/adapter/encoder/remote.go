package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"facequant/internal/domain"
)

// ErrEncoderUnavailable is returned while the circuit breaker is open.
var ErrEncoderUnavailable = errors.New("face encoder unavailable")

// RemoteEncoder calls an inference sidecar that runs face detection and
// embedding (e.g. InsightFace buffalo_l or MTCNN+FaceNet).
type RemoteEncoder struct {
	baseURL         string
	model           string
	dimension       int
	client          *http.Client
	breaker         *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	retryInitial    time.Duration
	logger          logrus.FieldLogger
}

type RemoteOptions struct {
	BaseURL            string
	Model              string
	Dimension          int // 0 accepts any dimension
	Timeout            time.Duration
	RetryMaxElapsed    time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
	Logger             logrus.FieldLogger
	HTTPClient         *http.Client
}

type encodeResponse struct {
	Faces []detectedFace `json:"faces"`
	Model string         `json:"model"`
	Error string         `json:"error,omitempty"`
}

type detectedFace struct {
	Embedding []float64  `json:"embedding"`
	DetScore  float64    `json:"det_score"`
	BBox      [4]float64 `json:"bbox"`
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("encoder returned status %d: %s", e.Code, e.Body)
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "request failed: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func NewRemoteEncoder(opts RemoteOptions) (*RemoteEncoder, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("encoder base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	e := &RemoteEncoder{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		model:           opts.Model,
		dimension:       opts.Dimension,
		client:          client,
		retryMaxElapsed: opts.RetryMaxElapsed,
		retryInitial:    100 * time.Millisecond,
		logger:          opts.Logger.WithField("component", "remote_encoder"),
	}

	failures := opts.BreakerFailures
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "face-encoder",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors say nothing about the sidecar's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return e, nil
}

// Encode sends image to the sidecar and returns the normalised embedding of
// the highest scoring face.
func (e *RemoteEncoder) Encode(ctx context.Context, image []byte) (domain.RawEmbedding, error) {
	var resp *encodeResponse

	op := func() error {
		res, err := e.breaker.Execute(func() (interface{}, error) {
			return e.encodeOnce(ctx, image)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrEncoderUnavailable, err))
			}
			if !isRetryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = res.(*encodeResponse)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		e.logger.WithError(err).WithField("retry_in", wait).Warn("encoder request failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(e.newBackOff(), ctx), notify); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return nil, &domain.Error{Kind: domain.KindInvalidInput, Op: "encode", Message: "encoder rejected image", Err: err}
		}
		return nil, err
	}

	if len(resp.Faces) == 0 {
		return nil, domain.ErrNoFaceDetected
	}

	faces := resp.Faces
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].DetScore > faces[j].DetScore })
	best := faces[0]

	if e.dimension > 0 && len(best.Embedding) != e.dimension {
		return nil, fmt.Errorf("encoder returned %d-dimensional embedding, expected %d", len(best.Embedding), e.dimension)
	}

	return Normalize(best.Embedding)
}

func (e *RemoteEncoder) newBackOff() backoff.BackOff {
	if e.retryMaxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInitial
	b.MaxElapsedTime = e.retryMaxElapsed
	return b
}

func (e *RemoteEncoder) encodeOnce(ctx context.Context, image []byte) (*encodeResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "face")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	if e.model != "" {
		if err := mw.WriteField("model", e.model); err != nil {
			return nil, fmt.Errorf("failed to write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/encode", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("encoder responded")

	if resp.StatusCode != http.StatusOK {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, &statusError{Code: resp.StatusCode, Body: preview}
	}

	var out encodeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("encoder error: %s", out.Error)
	}

	return &out, nil
}

func (e *RemoteEncoder) Dimension() int {
	return e.dimension
}

func (e *RemoteEncoder) ModelName() string {
	return e.model
}

// isRetryable reports whether err is a transient transport or server failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var te *transportError
	return errors.As(err, &te)
}
