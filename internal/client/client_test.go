package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facequant/internal/domain"
)

func TestGetEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get-embedding", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()
		assert.Equal(t, "me.png", header.Filename)
		_, _ = w.Write([]byte(`{"embedding_compressed": [7989, 7977, 7985]}`))
	}))
	defer srv.Close()

	emb, err := New(srv.URL).GetEmbedding(context.Background(), "me.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []int64{7989, 7977, 7985}, emb.Compressed)
	assert.Equal(t, []float64{7989, 7977, 7985}, emb.Vector())
	assert.Equal(t, domain.RepresentationQuantized, emb.Representation())
}

func TestGetEmbeddingReduced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reduced_emb": [1.5, -2]}`))
	}))
	defer srv.Close()

	emb, err := New(srv.URL).GetEmbedding(context.Background(), "me.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2}, emb.Vector())
	assert.Equal(t, domain.RepresentationReduced, emb.Representation())
}

func TestCompare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reduced", body["representation"])
		_, _ = w.Write([]byte(`{"distance": 2.5, "match": true}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL).Compare(context.Background(), []float64{1}, []float64{3.5}, domain.RepresentationReduced)
	require.NoError(t, err)
	assert.Equal(t, &Comparison{Distance: 2.5, Match: true}, got)
}

func TestClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "missing field: face_reg", "kind": "invalid_input"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Compare(context.Background(), []float64{1}, nil, "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing field: face_reg", apiErr.Detail)
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerErrorRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"distance": 0, "match": true}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, WithRetry(5*time.Second)).Compare(context.Background(), []float64{1}, []float64{1}, "")
	require.NoError(t, err)
	assert.True(t, got.Match)
	assert.Equal(t, int32(2), hits.Load())
}
