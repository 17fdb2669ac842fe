package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("/compare-embeddings", "POST", 200, 5*time.Millisecond)
	m.ObserveRequest("/compare-embeddings", "POST", 200, 7*time.Millisecond)
	m.ObserveCompare("reduced", true, 3.2)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveEmbed("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/compare-embeddings", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compares.WithLabelValues("reduced", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeds.WithLabelValues("ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNoopDoesNotPanic(t *testing.T) {
	m := Noop()
	m.ObserveEncoder(time.Millisecond)
	m.ObserveCompare("quantized", false, 12)
}
