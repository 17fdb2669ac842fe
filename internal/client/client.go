// Package client is a Go client for the facequant HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"facequant/internal/domain"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("facequant: %d %s: %s", e.StatusCode, e.Kind, e.Detail)
	}
	return fmt.Sprintf("facequant: %d: %s", e.StatusCode, e.Detail)
}

// Client calls /get-embedding and /compare-embeddings.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetry sets how long 5xx and transport errors are retried. Zero
// disables retries.
func WithRetry(maxElapsed time.Duration) Option {
	return func(cl *Client) { cl.maxElapsed = maxElapsed }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxElapsed: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embedding is the server's answer to /get-embedding. Exactly one field is
// set, depending on the server's representation.
type Embedding struct {
	Compressed []int64   `json:"embedding_compressed,omitempty"`
	Reduced    []float64 `json:"reduced_emb,omitempty"`
}

// Vector returns whichever representation was returned as float64.
func (e *Embedding) Vector() []float64 {
	if e.Reduced != nil {
		return e.Reduced
	}
	return domain.QuantizedEmbedding(e.Compressed).Floats()
}

// Representation names the representation the server returned.
func (e *Embedding) Representation() domain.Representation {
	if e.Reduced != nil {
		return domain.RepresentationReduced
	}
	return domain.RepresentationQuantized
}

// GetEmbedding uploads an image and returns its stored representation.
func (c *Client) GetEmbedding(ctx context.Context, filename string, image []byte) (*Embedding, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out Embedding
	if err := c.do(ctx, "/get-embedding", mw.FormDataContentType(), body.Bytes(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comparison is the server's answer to /compare-embeddings.
type Comparison struct {
	Distance float64 `json:"distance"`
	Match    bool    `json:"match"`
}

// Compare asks the server whether login matches reg. An empty rep uses
// the server default.
func (c *Client) Compare(ctx context.Context, login, reg []float64, rep domain.Representation) (*Comparison, error) {
	payload, err := json.Marshal(struct {
		FaceLogin      []float64 `json:"face_login"`
		FaceReg        []float64 `json:"face_reg"`
		Representation string    `json:"representation,omitempty"`
	}{login, reg, string(rep)})
	if err != nil {
		return nil, err
	}

	var out Comparison
	if err := c.do(ctx, "/compare-embeddings", "application/json", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, payload []byte, out interface{}) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
			var body struct {
				Detail string `json:"detail"`
				Kind   string `json:"kind"`
			}
			if json.Unmarshal(data, &body) == nil && body.Detail != "" {
				apiErr.Detail = body.Detail
				apiErr.Kind = body.Kind
			}
			if resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.maxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 50 * time.Millisecond
		eb.MaxElapsedTime = c.maxElapsed
		b = eb
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
