package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/api/v1/offers", 201, 40*time.Millisecond)
	m.Observe("POST", "/api/v1/offers", 201, 10*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "devicehub_http_requests_total")
	if mf == nil {
		t.Fatal("request counter not registered")
	}

	var offers, unmatched float64
	for _, metric := range mf.GetMetric() {
		labels := metric.GetLabel()
		switch {
		case matchesLabel(labels, "route", "/api/v1/offers") && matchesLabel(labels, "status", "201"):
			offers = metric.GetCounter().GetValue()
		case matchesLabel(labels, "route", "unmatched"):
			unmatched = metric.GetCounter().GetValue()
		}
	}
	if offers != 2 {
		t.Fatalf("expected 2 offer requests, got %f", offers)
	}
	if unmatched != 1 {
		t.Fatalf("expected 1 unmatched request, got %f", unmatched)
	}
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
