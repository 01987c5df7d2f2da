package obs

import "testing"

func TestPerformanceTrackerRecordsSuccessAndError(t *testing.T) {
	pt := NewPerformanceTracker()
	pt.Record("api.openai.com", 100, true, "")
	pt.Record("api.openai.com", 200, false, "timeout")
	pt.Record("api.openai.com", 150, true, "")

	stats := pt.Stats("api.openai.com")
	if stats == nil {
		t.Fatal("expected stats for a tracked key")
	}
	if stats.RequestCount != 3 || stats.SuccessCount != 2 || stats.ErrorCount != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.ErrorsByType["timeout"] != 1 {
		t.Fatalf("expected 1 timeout error, got %+v", stats.ErrorsByType)
	}
}

func TestPerformanceTrackerStatsNilForUntrackedKey(t *testing.T) {
	pt := NewPerformanceTracker()
	if pt.Stats("unknown") != nil {
		t.Fatal("expected nil stats for an untracked key")
	}
}

func TestPerformanceTrackerAllStatsReturnsEveryKey(t *testing.T) {
	pt := NewPerformanceTracker()
	pt.Record("a", 10, true, "")
	pt.Record("b", 20, true, "")

	all := pt.AllStats()
	if len(all) != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", len(all))
	}
}

func TestKeyStatsComputeLatencyPercentiles(t *testing.T) {
	ks := &KeyStats{Latencies: []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}}
	stats := ks.ComputeLatency()

	if stats.AvgMS != 55 {
		t.Fatalf("expected average 55, got %d", stats.AvgMS)
	}
	if stats.P50MS != 60 {
		t.Fatalf("expected p50 60, got %d", stats.P50MS)
	}
}

func TestKeyStatsComputeLatencyEmpty(t *testing.T) {
	ks := &KeyStats{}
	if stats := ks.ComputeLatency(); stats != (LatencyStats{}) {
		t.Fatalf("expected zero-value stats for no samples, got %+v", stats)
	}
}

func TestKeyStatsComputeErrorRate(t *testing.T) {
	ks := &KeyStats{RequestCount: 4, ErrorCount: 1}
	if rate := ks.ComputeErrorRate(); rate != 0.25 {
		t.Fatalf("expected error rate 0.25, got %v", rate)
	}
}

func TestKeyStatsComputeErrorRateNoRequests(t *testing.T) {
	ks := &KeyStats{}
	if rate := ks.ComputeErrorRate(); rate != 0 {
		t.Fatalf("expected 0 error rate with no requests, got %v", rate)
	}
}

func TestStatsAreIsolatedCopies(t *testing.T) {
	pt := NewPerformanceTracker()
	pt.Record("a", 10, true, "")

	a := pt.Stats("a")
	a.Latencies[0] = 9999
	a.RequestCount = 9999

	b := pt.Stats("a")
	if b.Latencies[0] == 9999 || b.RequestCount == 9999 {
		t.Fatal("expected Stats to return an isolated copy, not a shared reference")
	}
}
