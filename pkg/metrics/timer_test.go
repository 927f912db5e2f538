package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewTimerStartsImmediately(t *testing.T) {
	timer := NewTimer()

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}

	// an immediate reading stays close to zero but never below it
	if d := timer.Duration(); d < 0 || d > time.Millisecond {
		t.Errorf("immediate Duration() = %v, want within [0, 1ms]", d)
	}
}

func TestTimerDurationGrows(t *testing.T) {
	timer := NewTimer()

	time.Sleep(50 * time.Millisecond)
	first := timer.Duration()
	if first < 50*time.Millisecond {
		t.Errorf("Duration() = %v, want >= 50ms", first)
	}

	time.Sleep(20 * time.Millisecond)
	second := timer.Duration()
	if second <= first {
		t.Errorf("Duration() should keep growing: first=%v, second=%v", first, second)
	}
}

func TestTimersAreIndependent(t *testing.T) {
	older := NewTimer()
	time.Sleep(50 * time.Millisecond)
	newer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	if older.Duration() <= newer.Duration() {
		t.Errorf("older timer should report more elapsed time: older=%v, newer=%v",
			older.Duration(), newer.Duration())
	}
}

func TestObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)
	timer.ObserveDuration(histogram)

	if count := testutil.CollectAndCount(histogram); count != 1 {
		t.Errorf("expected 1 collected metric, got %d", count)
	}
}

func TestObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)
	timer.ObserveDurationVec(vec, "get_group_weights")

	if count := testutil.CollectAndCount(vec); count != 1 {
		t.Errorf("expected 1 labelled series, got %d", count)
	}
}
