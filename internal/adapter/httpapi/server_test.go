package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facequant/config"
	"facequant/internal/adapter/encoder"
	"facequant/internal/domain"
	"facequant/internal/metrics"
	"facequant/internal/quantize"
	"facequant/internal/similarity"
	"facequant/internal/testutil"
	"facequant/internal/usecase"
)

type fixture struct {
	server   *Server
	handler  http.Handler
	registry *prometheus.Registry
}

func newFixture(t *testing.T, enc *testutil.StubEncoder, mutate func(*config.ServerConfig)) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	embed := usecase.NewEmbedUseCase(enc, quantize.NewDefault(), nil, nil, nil, m)
	comparator, err := similarity.NewComparator(similarity.DefaultThresholds())
	require.NoError(t, err)
	compare := usecase.NewCompareUseCase(comparator, embed.Representation(), embed.ExpectedDimensions(), nil, m)

	cfg := config.DefaultConfig().Server
	if mutate != nil {
		mutate(&cfg)
	}
	srv := New(cfg, embed, compare, nil, m, reg)
	return &fixture{server: srv, handler: srv.Handler(), registry: reg}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "face.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/get-embedding", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func compareRequestBody(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/compare-embeddings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGetEmbedding(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	rec := f.do(uploadRequest(t, "file", testutil.PNG(4, 4, 1)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"embedding_compressed": [7989, 7977, 7985]}`, rec.Body.String())
}

func TestGetEmbeddingMissingFile(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	rec := f.do(uploadRequest(t, "image", testutil.PNG(4, 4, 1)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorBody(t, rec).Detail, "file")
}

func TestGetEmbeddingNotMultipart(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/get-embedding", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEmbeddingNotAnImage(t *testing.T) {
	enc := &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}
	f := newFixture(t, enc, nil)

	rec := f.do(uploadRequest(t, "file", []byte("plain text")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.KindInvalidInput), decodeErrorBody(t, rec).Kind)
	assert.Equal(t, int64(0), enc.Calls())
}

func TestGetEmbeddingErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"NoFace", domain.ErrNoFaceDetected, http.StatusBadRequest, string(domain.KindNoFaceDetected)},
		{"Computation", domain.NewComputationError("normalize", "zero norm"), http.StatusUnprocessableEntity, string(domain.KindComputation)},
		{"Unavailable", fmt.Errorf("encode: %w", encoder.ErrEncoderUnavailable), http.StatusServiceUnavailable, "encoder_unavailable"},
		{"Unexpected", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &testutil.StubEncoder{Err: tt.err}, nil)

			rec := f.do(uploadRequest(t, "file", testutil.PNG(4, 4, 1)))
			require.Equal(t, tt.status, rec.Code)
			resp := decodeErrorBody(t, rec)
			assert.Equal(t, tt.kind, resp.Kind)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, resp.Detail, "disk on fire")
			}
		})
	}
}

func TestCompareEmbeddings(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	tests := []struct {
		name     string
		body     string
		distance float64
		match    bool
	}{
		{"Identical", `{"face_login": [7989, 7977, 7985], "face_reg": [7989, 7977, 7985]}`, 0, true},
		{"OneBucketApart", `{"face_login": [7989, 7977, 7985], "face_reg": [7989, 7978, 7985]}`, 1, false},
		{"ReducedThreshold", `{"face_login": [0, 0, 0], "face_reg": [3, 4, 0], "representation": "reduced"}`, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(compareRequestBody(tt.body))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp compareResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.distance, resp.Distance)
			assert.Equal(t, tt.match, resp.Match)
		})
	}
}

func TestCompareEmbeddingsRejectsBadInput(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	tests := []struct {
		name     string
		body     string
		contains []string
	}{
		{"Empty", ``, []string{"empty"}},
		{"MissingBoth", `{}`, []string{"face_login", "face_reg"}},
		{"MissingReg", `{"face_login": [1, 2, 3]}`, []string{"face_reg"}},
		{"WrongType", `{"face_login": "abc", "face_reg": [1, 2, 3]}`, []string{"face_login"}},
		{"Malformed", `{"face_login": [1, 2`, []string{"JSON"}},
		{"ShapeMismatch", `{"face_login": [1, 2, 3], "face_reg": [1, 2]}`, []string{"shape mismatch"}},
		{"WrongDimension", `{"face_login": [1, 2], "face_reg": [1, 2]}`, []string{"shape mismatch"}},
		{"TrailingData", `{"face_login": [1, 2, 3], "face_reg": [1, 2, 3]}{"x": 1}`, []string{"unexpected data"}},
		{"UnknownRepresentation", `{"face_login": [1, 2, 3], "face_reg": [1, 2, 3], "representation": "raw"}`, []string{"raw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(compareRequestBody(tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeErrorBody(t, rec)
			assert.Equal(t, string(domain.KindInvalidInput), resp.Kind)
			for _, s := range tt.contains {
				assert.Contains(t, resp.Detail, s)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/compare-embeddings", http.MethodPost},
		{http.MethodPut, "/get-embedding", http.MethodPost},
		{http.MethodPost, "/healthz", http.MethodGet},
		{http.MethodDelete, "/metrics", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.allow, rec.Header().Get("Allow"))
			assert.Equal(t, "method_not_allowed", decodeErrorBody(t, rec).Kind)
		})
	}
}

func TestUnknownPath(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/embeddings", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeErrorBody(t, rec).Kind)
}

func TestCompareEmbeddingsLargeValues(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	rec := f.do(compareRequestBody(`{"face_login": [1e200, 0, 0], "face_reg": [-1e200, 0, 0]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp compareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InEpsilon(t, 2e200, resp.Distance, 1e-12)
	assert.False(t, resp.Match)
}

func TestCompareEmbeddingsOverflowingDifference(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	rec := f.do(compareRequestBody(`{"face_login": [1.7e308, 0, 0], "face_reg": [-1.7e308, 0, 0]}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, string(domain.KindComputation), decodeErrorBody(t, rec).Kind)
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, compareResponse{Distance: math.Inf(1)})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeErrorBody(t, rec).Kind)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "encoder": "stub", "representation": "quantized"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1, -0.2, 0.0}}, nil)

	f.do(compareRequestBody(`{"face_login": [1, 2, 3], "face_reg": [1, 2, 3]}`))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compare-embeddings")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	first := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, func(c *config.ServerConfig) {
		c.AllowedOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/compare-embeddings", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.do(req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, &testutil.StubEncoder{Embedding: domain.RawEmbedding{0.1}}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
