package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCartSyncMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartSyncMetrics(reg)

	m.IncReconcile("success")
	m.IncStockClamp()
	m.IncRollback()
	m.IncStaleDiscard()
	m.ObserveGateway("fetch_cart", "success", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cart_reconcile_passes_total", "result", "success"); err != nil {
		t.Fatalf("fetch reconcile: %v", err)
	} else if got != 1 {
		t.Fatalf("expected reconcile=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cart_gateway_requests_total", "op", "fetch_cart"); err != nil {
		t.Fatalf("fetch gateway calls: %v", err)
	} else if got != 1 {
		t.Fatalf("expected gateway calls=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cart_gateway_request_seconds", "op", "fetch_cart"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	t.Parallel()

	m := NewCartSyncMetrics(nil)
	m.IncReconcile("failure")
	m.IncStockClamp()
	m.IncRollback()
	m.IncStaleDiscard()
	m.ObserveGateway("update_item", "failure", time.Millisecond)

	var nilMetrics *CartSyncMetrics
	nilMetrics.IncReconcile("success")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric family %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric, label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("no metric with %s=%s", label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric family %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabel(metric, label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("no metric with %s=%s", label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabel(metric *dto.Metric, label, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == label && pair.GetValue() == value {
			return true
		}
	}
	return false
}
