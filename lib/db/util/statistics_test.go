package util

import (
	"math"
	"testing"
)

func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if stats.Mean != 5 {
		t.Errorf("expected mean 5, got %f", stats.Mean)
	}
	if stats.StdDeviation != 2 {
		t.Errorf("expected std deviation 2, got %f", stats.StdDeviation)
	}
	if stats.Min != 2 || stats.Max != 9 {
		t.Errorf("expected min 2 and max 9, got %f and %f", stats.Min, stats.Max)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("expected zero stats for empty input, got %+v", empty)
	}
}

func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("expected quality 1 for an even distribution, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed distribution must rate lower, got %f", skewed.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Fatalf("empty histogram must report zero")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(10) // first bucket
	}
	for i := 0; i < 10; i++ {
		h.AddSample(2000) // 1024 < size <= 4096
	}
	h.AddSample(math.MaxInt32 * 4) // unbounded bucket

	if h.Count() != 101 {
		t.Errorf("expected 101 samples, got %d", h.Count())
	}
	if got := h.MedianEstimate(); got != 8 {
		t.Errorf("expected median estimate 8, got %d", got)
	}
	if got := h.PercentileEstimate(95); got != (1024+4096)/2 {
		t.Errorf("expected p95 estimate %d, got %d", (1024+4096)/2, got)
	}
	if got := h.PercentileEstimate(100); got != 4294967296*2 {
		t.Errorf("expected p100 estimate in the last bucket, got %d", got)
	}
	if h.PercentileEstimate(101) != 0 {
		t.Errorf("invalid percentile must return 0")
	}
}

func TestHashString(t *testing.T) {
	if HashString("key", 1) != HashString("key", 1) {
		t.Errorf("hash must be deterministic")
	}
	if HashString("key", 1) == HashString("key", 2) {
		t.Errorf("seed must change the hash")
	}
	if HashString("a", 1) == HashString("b", 1) {
		t.Errorf("different keys should hash differently")
	}
}
