package aggregate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/raysh454/compliscan/internal/model"
)

func allOptions() model.ScanOptions {
	return model.ScanOptions{GDPR: true, Accessibility: true, Security: true, Performance: true, SEO: true}
}

func res(score int, issues ...string) *model.CategoryResult {
	return &model.CategoryResult{Score: score, Issues: issues}
}

// ─── Score and grade ───────────────────────────────────────────────────

func TestAggregate_MeanAndGrade(t *testing.T) {
	t.Parallel()
	a := New(nil)
	got := a.Aggregate(allOptions(), map[model.Category]*model.CategoryResult{
		model.CategoryGDPR:          res(80),
		model.CategoryAccessibility: res(60),
		model.CategorySecurity:      res(100),
		model.CategoryPerformance:   res(90),
		model.CategorySEO:           res(70),
	})
	if got.Score != 80 || got.Grade != "B" {
		t.Fatalf("expected 80/B, got %d/%s", got.Score, got.Grade)
	}
	if got.ComplianceStatus != model.ComplianceGood {
		t.Errorf("expected good, got %s", got.ComplianceStatus)
	}
}

func TestAggregate_IgnoresDisabledCategories(t *testing.T) {
	t.Parallel()
	a := New(nil)
	got := a.Aggregate(model.ScanOptions{GDPR: true, Security: true}, map[model.Category]*model.CategoryResult{
		model.CategoryGDPR:        res(91, "a"),
		model.CategorySecurity:    res(94, "b", "c"),
		model.CategoryPerformance: res(0, "x", "y", "z"),
	})
	if got.Score != 93 {
		t.Errorf("expected rounded mean 93, got %d", got.Score)
	}
	if got.TotalIssues != 3 {
		t.Errorf("expected 3 issues, got %d", got.TotalIssues)
	}
}

func TestAggregate_Rounding(t *testing.T) {
	t.Parallel()
	a := New(nil)
	got := a.Aggregate(model.ScanOptions{GDPR: true, SEO: true}, map[model.Category]*model.CategoryResult{
		model.CategoryGDPR: res(89),
		model.CategorySEO:  res(90),
	})
	if got.Score != 90 || got.Grade != "A" {
		t.Fatalf("expected 89.5 to round to 90/A, got %d/%s", got.Score, got.Grade)
	}
}

func TestGrade_Boundaries(t *testing.T) {
	t.Parallel()
	cases := map[int]string{100: "A", 90: "A", 89: "B", 80: "B", 79: "C", 70: "C", 69: "D", 60: "D", 59: "F", 0: "F"}
	for score, want := range cases {
		if got := Grade(score); got != want {
			t.Errorf("Grade(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestStatus_Boundaries(t *testing.T) {
	t.Parallel()
	cases := map[int]model.ComplianceStatus{
		95: model.ComplianceExcellent, 85: model.ComplianceGood, 75: model.ComplianceFair,
		50: model.CompliancePoor, 49: model.ComplianceCritical,
	}
	for score, want := range cases {
		if got := Status(score); got != want {
			t.Errorf("Status(%d) = %s, want %s", score, got, want)
		}
	}
}

// ─── Recommendations ───────────────────────────────────────────────────

func TestLowestScores_OrderAndTies(t *testing.T) {
	t.Parallel()
	a := New(LowestScores{Limit: 2})
	got := a.Aggregate(allOptions(), map[model.Category]*model.CategoryResult{
		model.CategoryGDPR:          res(95),
		model.CategoryAccessibility: res(40),
		model.CategorySecurity:      {Score: 40, Recommendations: []string{"Add HSTS"}},
		model.CategoryPerformance:   res(70),
		model.CategorySEO:           res(99),
	})
	want := []string{
		"Accessibility (score 40): " + cannedAdvice[model.CategoryAccessibility],
		"Security (score 40): Add HSTS",
	}
	if !reflect.DeepEqual(got.Recommendations, want) {
		t.Fatalf("got %q\nwant %q", got.Recommendations, want)
	}
}

func TestLowestScores_FullScanHint(t *testing.T) {
	t.Parallel()
	a := New(nil)
	got := a.Aggregate(model.ScanOptions{GDPR: true}, map[model.Category]*model.CategoryResult{
		model.CategoryGDPR: res(100),
	})
	if len(got.Recommendations) != 1 || got.Recommendations[0] != fullScanAdvice {
		t.Fatalf("expected only the full scan hint, got %q", got.Recommendations)
	}
}

func TestLowestScores_Deterministic(t *testing.T) {
	t.Parallel()
	a := New(nil)
	in := map[model.Category]*model.CategoryResult{
		model.CategoryGDPR:          res(50),
		model.CategoryAccessibility: res(50),
		model.CategorySecurity:      res(50),
		model.CategoryPerformance:   res(50),
		model.CategorySEO:           res(50),
	}
	first := a.Aggregate(allOptions(), in).Recommendations
	for i := 0; i < 20; i++ {
		if got := a.Aggregate(allOptions(), in).Recommendations; !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %q vs %q", i, got, first)
		}
	}
	if !strings.HasPrefix(first[0], "GDPR") {
		t.Errorf("expected canonical tie-break to put GDPR first, got %q", first[0])
	}
}

// ─── Priority issues ───────────────────────────────────────────────────

func TestPriorityIssues(t *testing.T) {
	t.Parallel()
	a := New(nil)
	got := a.Aggregate(model.ScanOptions{GDPR: true, Security: true, SEO: true}, map[model.Category]*model.CategoryResult{
		model.CategoryGDPR:     res(30, "No cookie consent banner detected"),
		model.CategorySecurity: res(45),
		model.CategorySEO:      res(90),
	})
	want := []string{"GDPR: No cookie consent banner detected", "Security: score below 50"}
	if !reflect.DeepEqual(got.PriorityIssues, want) {
		t.Fatalf("got %q, want %q", got.PriorityIssues, want)
	}
}

func TestAggregate_NoEnabledResults(t *testing.T) {
	t.Parallel()
	got := New(nil).Aggregate(model.ScanOptions{}, nil)
	if got.Score != 0 || got.Grade != "F" || got.TotalIssues != 0 {
		t.Fatalf("unexpected overall: %+v", got)
	}
}
