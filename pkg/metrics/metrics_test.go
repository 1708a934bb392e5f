package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDatabase(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.ObserveDatabase("notification.create", time.Now(), nil)
	m.ObserveDatabase("notification.create", time.Now(), errors.New("boom"))
	m.ObserveDatabase("notification.create", time.Now(), nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("notification.create", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("notification.create", "error")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDatabase("op", time.Now(), nil)
		m.ObserveRedis("op", time.Now(), nil)
	})
}
