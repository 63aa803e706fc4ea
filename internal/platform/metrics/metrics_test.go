package metrics

import (
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 2*time.Millisecond)

	snap := c.Snapshot()
	if snap["requestsTotal"].(uint64) != 3 {
		t.Fatalf("expected 3 requests, got %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"].(uint64) != 1 {
		t.Fatalf("expected 1 error, got %v", snap["errorsTotal"])
	}
	if snap["rateLimitedTotal"].(uint64) != 1 {
		t.Fatalf("expected 1 rate limited, got %v", snap["rateLimitedTotal"])
	}
	if snap["totalDurationMs"].(uint64) != 42 {
		t.Fatalf("expected 42ms total, got %v", snap["totalDurationMs"])
	}
}

func TestRecordTransition(t *testing.T) {
	c := New()
	c.RecordTransition("agreement", "submit", true)
	c.RecordTransition("agreement", "submit", true)
	c.RecordTransition("review", "reject", false)

	snap := c.Snapshot()
	ok := snap["transitionsTotal"].(map[string]uint64)
	if ok["agreement.submit"] != 2 {
		t.Fatalf("expected 2 submits, got %d", ok["agreement.submit"])
	}
	rejected := snap["transitionsRejectedTotal"].(map[string]uint64)
	if rejected["review.reject"] != 1 {
		t.Fatalf("expected 1 rejected review action, got %d", rejected["review.reject"])
	}

	var nilCollector *Collector
	nilCollector.RecordTransition("agreement", "submit", true)
}
