package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_LogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	r := NewReporter(zerolog.New(&buf), reg)

	r.Report(context.Background(), "Add_Product", errors.New("unreachable"))
	r.Report(context.Background(), "add_product", errors.New("unreachable"))
	r.Observe("push_stale")

	assert.Contains(t, buf.String(), `"op":"Add_Product"`)
	assert.Contains(t, buf.String(), "unreachable")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.failures.WithLabelValues("add_product")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.events.WithLabelValues("push_stale")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReporter_NilRegistry(t *testing.T) {
	r := NewReporter(zerolog.Nop(), nil)
	r.Report(context.Background(), "", errors.New("x"))
	r.Observe("anything")
	var nilReporter *Reporter
	nilReporter.Report(context.Background(), "op", nil)
}
