package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	r.Observe(8, "I8", 100, 30, time.Millisecond, nil)
	r.Observe(8, "I8", 100, 30, 2*time.Millisecond, nil)
	r.Observe(16, "F32", 10, 10, time.Millisecond, errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(r.products.WithLabelValues("8", "I8", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.products.WithLabelValues("16", "F32", "error")))
	require.Equal(t, 6000.0, testutil.ToFloat64(r.elements.WithLabelValues("I8")))
	require.Equal(t, 0.0, testutil.ToFloat64(r.elements.WithLabelValues("F32")))
	require.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(2, "F64", 3, 3, time.Microsecond, nil)

	path := filepath.Join(t.TempDir(), "bigprod.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `bigprod_products_total{dtype="F64",outcome="ok",unroll="2"} 1`)
	require.Contains(t, string(raw), "bigprod_product_duration_seconds_bucket")
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Observe(8, "I8", 1, 1, time.Second, nil)
	require.Nil(t, r.Registry())
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x")))
}
