package metrics_test

import (
	"testing"
	"time"

	"storefront/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.OrderCreated()
	m.PaymentConfirmed("paid")
	m.PaymentConfirmed("STATE_CONFLICT")
	m.Oversold()
	m.ReconciliationFlagged("confirm")
	m.ReconciliationFlagged("cancel")
	m.ObserveGateway("confirm", "ok", 20*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "storefront_order_created_total")
	assert.Contains(t, names, "storefront_payment_oversold_total")
	count, err := testutil.GatherAndCount(reg, "storefront_payment_confirmations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(reg, "storefront_payment_reconciliations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per operation")
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *metrics.OrderMetrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.PaymentConfirmed("paid")
		m.OrderCanceled("canceled")
		m.Oversold()
		m.ReconciliationFlagged("confirm")
		m.ObserveGateway("cancel", "error", time.Second)
	})
}
