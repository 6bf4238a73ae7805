package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrdersFailedTotal_ByKind(t *testing.T) {
	before := testutil.ToFloat64(OrdersFailedTotal.WithLabelValues("insufficient_stock"))

	OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
	OrdersFailedTotal.WithLabelValues("validation").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(OrdersFailedTotal.WithLabelValues("insufficient_stock")))
}

func TestOrdersCreatedTotal(t *testing.T) {
	before := testutil.ToFloat64(OrdersCreatedTotal)
	OrdersCreatedTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OrdersCreatedTotal))
}
