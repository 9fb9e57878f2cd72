package metrics

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func renderedBucketCounts(t *testing.T, text, name string) (buckets []uint64, inf, count uint64) {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, name+"_bucket{le=\"+Inf\"}"):
			inf = parseCount(t, line)
		case strings.HasPrefix(line, name+"_bucket"):
			buckets = append(buckets, parseCount(t, line))
		case strings.HasPrefix(line, name+"_count"):
			count = parseCount(t, line)
		}
	}
	return buckets, inf, count
}

func parseCount(t *testing.T, line string) uint64 {
	t.Helper()
	fields := strings.Fields(line)
	if len(fields) != 2 {
		t.Fatalf("unexpected metric line %q", line)
	}
	val, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return val
}

func TestHistogramRenderIsValidCumulative(t *testing.T) {
	h := newHistogram([]float64{100, 250, 500})
	h.Observe(50)
	h.Observe(300)
	h.Observe(9000)

	var buf bytes.Buffer
	writeHistogram(&buf, "test_duration_ms", "help", h.Snapshot())

	buckets, inf, count := renderedBucketCounts(t, buf.String(), "test_duration_ms")
	if count != 3 {
		t.Fatalf("expected _count 3, got %d", count)
	}
	if inf != count {
		t.Fatalf("+Inf bucket %d must equal _count %d", inf, count)
	}
	var prev uint64
	for i, c := range buckets {
		if c < prev {
			t.Fatalf("bucket %d count %d below previous %d, not cumulative", i, c, prev)
		}
		if c > count {
			t.Fatalf("bucket %d count %d exceeds total observations %d", i, c, count)
		}
		prev = c
	}
	want := []uint64{1, 1, 2}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: expected %d, got %d (all %v)", i, want[i], buckets[i], buckets)
		}
	}
}

func TestHistogramSingleLowObservation(t *testing.T) {
	h := newHistogram([]float64{100, 250, 500})
	h.Observe(50)

	var buf bytes.Buffer
	writeHistogram(&buf, "test_duration_ms", "help", h.Snapshot())

	buckets, inf, count := renderedBucketCounts(t, buf.String(), "test_duration_ms")
	if count != 1 || inf != 1 {
		t.Fatalf("expected _count and +Inf of 1, got %d / %d", count, inf)
	}
	for i, c := range buckets {
		if c != 1 {
			t.Fatalf("bucket %d: one observation below every bound must render 1, got %d", i, c)
		}
	}
}
