package model

import (
	"testing"
	"time"
)

func TestScanOptions_EnabledCanonicalOrder(t *testing.T) {
	t.Parallel()
	o := ScanOptions{SEO: true, GDPR: true, Performance: true}
	got := o.Enabled()
	want := []Category{CategoryGDPR, CategoryPerformance, CategorySEO}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDefaultScanOptions(t *testing.T) {
	t.Parallel()
	o := DefaultScanOptions()
	if !o.GDPR || !o.Accessibility || !o.Security || o.Performance || o.SEO {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}

func TestResults_GetSet(t *testing.T) {
	t.Parallel()
	r := &Results{}
	r.Set(CategorySecurity, &CategoryResult{Score: 70})
	if r.Get(CategorySecurity).Score != 70 {
		t.Fatal("expected security result to round-trip")
	}
	if r.Get(CategoryGDPR) != nil {
		t.Fatal("expected nil for unset category")
	}
	var nilResults *Results
	if nilResults.Get(CategorySEO) != nil {
		t.Fatal("expected nil receiver to return nil")
	}
}

// ─── Website due-ness ──────────────────────────────────────────────────

func TestWebsite_IsDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sixAgo := now.Add(-6 * time.Minute)
	twoAgo := now.Add(-2 * time.Minute)

	tests := []struct {
		name string
		site Website
		want bool
	}{
		{"never checked", Website{IsActive: true, Interval: Interval5Min}, true},
		{"six minutes ago", Website{IsActive: true, Interval: Interval5Min, LastCheck: &sixAgo}, true},
		{"two minutes ago", Website{IsActive: true, Interval: Interval5Min, LastCheck: &twoAgo}, false},
		{"inactive", Website{IsActive: false, Interval: Interval1Min, LastCheck: &sixAgo}, false},
		{"bad interval", Website{IsActive: true, Interval: "7min", LastCheck: &sixAgo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.site.IsDue(now); got != tt.want {
				t.Errorf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduledScan_IsDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	if !(&ScheduledScan{IsActive: true, NextRun: &past}).IsDue(now) {
		t.Error("expected past nextRun to be due")
	}
	if !(&ScheduledScan{IsActive: true, NextRun: &now}).IsDue(now) {
		t.Error("expected nextRun == now to be due")
	}
	if (&ScheduledScan{IsActive: true, NextRun: &future}).IsDue(now) {
		t.Error("expected future nextRun not due")
	}
	if (&ScheduledScan{IsActive: false, NextRun: &past}).IsDue(now) {
		t.Error("expected paused rule not due")
	}
}

func TestComputeStats(t *testing.T) {
	t.Parallel()
	sites := []*Website{
		{IsActive: true, Status: StatusOnline, ResponseTimeMS: 100, Uptime: 100, TotalChecks: 10, SuccessfulChecks: 10},
		{IsActive: false, Status: StatusOffline, ResponseTimeMS: 300, Uptime: 50, TotalChecks: 4, SuccessfulChecks: 2, FailedChecks: 2},
	}
	st := ComputeStats(sites)
	if st.TotalWebsites != 2 || st.ActiveWebsites != 1 || st.OnlineWebsites != 1 || st.OfflineWebsites != 1 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.AverageResponseTime != 200 || st.AverageUptime != 75 {
		t.Fatalf("unexpected averages: %+v", st)
	}
	if st.TotalChecks != 14 || st.FailedChecks != 2 {
		t.Fatalf("unexpected check counters: %+v", st)
	}
}
