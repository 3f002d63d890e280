package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(t *testing.T, m *metricdata.Metrics, match func(attribute.Set) bool) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if match(dp.Attributes) {
			total += dp.Value
		}
	}
	return total
}

func attrIs(set attribute.Set, key, want string) bool {
	v, ok := set.Value(attribute.Key(key))
	return ok && v.AsString() == want
}

func TestOTelCollector_Operations(t *testing.T) {
	reader, mp := setupTestMeter()
	c := NewOTel(mp.Meter("test"), "orders")

	c.RecordEnqueue(10, time.Millisecond)
	c.RecordEnqueue(20, time.Millisecond)
	c.RecordClaim(10, time.Millisecond)
	c.RecordAcknowledge(time.Millisecond)
	c.RecordReleaseError()

	rm := collectMetrics(t, reader)

	ops := findMetric(rm, "filemq.operations")
	if ops == nil {
		t.Fatal("filemq.operations metric not found")
	}

	enqueues := sumFor(t, ops, func(s attribute.Set) bool {
		return attrIs(s, "operation", OpEnqueue) && attrIs(s, "status", "ok") && attrIs(s, "queue", "orders")
	})
	if enqueues != 2 {
		t.Errorf("enqueue ok count = %d, want 2", enqueues)
	}

	releaseErrors := sumFor(t, ops, func(s attribute.Set) bool {
		return attrIs(s, "operation", OpRelease) && attrIs(s, "status", "error")
	})
	if releaseErrors != 1 {
		t.Errorf("release error count = %d, want 1", releaseErrors)
	}

	bytes := findMetric(rm, "filemq.payload.bytes")
	if bytes == nil {
		t.Fatal("filemq.payload.bytes metric not found")
	}
	enqueued := sumFor(t, bytes, func(s attribute.Set) bool { return attrIs(s, "operation", OpEnqueue) })
	if enqueued != 30 {
		t.Errorf("enqueued bytes = %d, want 30", enqueued)
	}

	if findMetric(rm, "filemq.operation.duration") == nil {
		t.Error("filemq.operation.duration metric not found")
	}
}

func TestOTelCollector_Recovery(t *testing.T) {
	reader, mp := setupTestMeter()
	c := NewOTel(mp.Meter("test"), "orders")

	c.RecordRecovery(4, time.Millisecond)

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "filemq.recovered.messages")
	if m == nil {
		t.Fatal("filemq.recovered.messages metric not found")
	}
	if got := sumFor(t, m, func(attribute.Set) bool { return true }); got != 4 {
		t.Errorf("recovered = %d, want 4", got)
	}
}

func TestOTelCollector_QueueState(t *testing.T) {
	reader, mp := setupTestMeter()
	c := NewOTel(mp.Meter("test"), "orders")

	c.UpdateQueueState(5, 1)

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "filemq.messages")
	if m == nil {
		t.Fatal("filemq.messages metric not found")
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected Gauge[int64], got %T", m.Data)
	}

	got := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		state, _ := dp.Attributes.Value("state")
		got[state.AsString()] = dp.Value
	}
	if got["available"] != 5 || got["in_flight"] != 1 {
		t.Errorf("gauge values = %v, want available=5 in_flight=1", got)
	}
}
