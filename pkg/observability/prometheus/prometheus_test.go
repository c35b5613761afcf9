package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/observability"
)

func TestHooksRecordMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	h.OnSettle(ctx, "public")
	h.OnSettle(ctx, "public")
	h.OnSettle(ctx, "private")
	h.OnCacheHit(ctx, "file")
	h.OnCacheSet(ctx, "file", false)
	h.OnProbe(ctx, "direct", "https://repo1.maven.org/maven2/", true)
	h.OnStrategy(ctx, "sidecar", true, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.settled.WithLabelValues("public")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.settled.WithLabelValues("private")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.cacheLookups.WithLabelValues("file", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.cacheWrites.WithLabelValues("file", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.probes.WithLabelValues("direct", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(h.strategies))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	t.Cleanup(observability.Reset)
	h, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	h.Install()
	assert.Same(t, h, observability.Pipeline())
	assert.Same(t, h, observability.Cache())
	assert.Same(t, h, observability.HTTP())
}
