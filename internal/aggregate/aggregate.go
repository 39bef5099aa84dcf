// Package aggregate folds per-category results into the overall score, grade
// and recommendations of a scan.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/raysh454/compliscan/internal/model"
)

const (
	maxPriorityIssues  = 5
	fullScanCategories = 3
	fullScanAdvice     = "Consider running a full scan to get comprehensive compliance insights"
)

// Grade maps an overall score to its letter.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Status maps an overall score to its compliance band.
func Status(score int) model.ComplianceStatus {
	switch {
	case score >= 90:
		return model.ComplianceExcellent
	case score >= 80:
		return model.ComplianceGood
	case score >= 70:
		return model.ComplianceFair
	case score >= 50:
		return model.CompliancePoor
	default:
		return model.ComplianceCritical
	}
}

// Scored pairs a category with its result.
type Scored struct {
	Category model.Category
	Result   *model.CategoryResult
}

// RecommendationStrategy picks the overall recommendations.
type RecommendationStrategy interface {
	Recommend(enabled []Scored) []string
}

// Aggregator computes the overall summary of a scan.
type Aggregator struct {
	Strategy RecommendationStrategy
}

// New returns an Aggregator with the given strategy, or LowestScores when nil.
func New(strategy RecommendationStrategy) *Aggregator {
	if strategy == nil {
		strategy = LowestScores{}
	}
	return &Aggregator{Strategy: strategy}
}

// Aggregate computes Overall over the categories enabled in opts. Results for
// disabled categories are ignored. With no enabled results the score is 0.
func (a *Aggregator) Aggregate(opts model.ScanOptions, results map[model.Category]*model.CategoryResult) model.Overall {
	var enabled []Scored
	for _, c := range opts.Enabled() {
		if r, ok := results[c]; ok && r != nil {
			enabled = append(enabled, Scored{Category: c, Result: r})
		}
	}

	sum, issues := 0, 0
	for _, s := range enabled {
		sum += s.Result.Score
		issues += len(s.Result.Issues)
	}
	score := 0
	if len(enabled) > 0 {
		score = int(math.Round(float64(sum) / float64(len(enabled))))
	}

	strategy := a.Strategy
	if strategy == nil {
		strategy = LowestScores{}
	}
	recs := strategy.Recommend(enabled)
	if recs == nil {
		recs = []string{}
	}

	return model.Overall{
		Score:            score,
		Grade:            Grade(score),
		TotalIssues:      issues,
		Recommendations:  recs,
		PriorityIssues:   priorityIssues(enabled, score),
		ComplianceStatus: Status(score),
	}
}

func priorityIssues(enabled []Scored, overall int) []string {
	out := []string{}
	for _, s := range enabled {
		if s.Result.Score >= 50 || len(out) >= maxPriorityIssues {
			continue
		}
		issue := "score below 50"
		if len(s.Result.Issues) > 0 {
			issue = s.Result.Issues[0]
		}
		out = append(out, fmt.Sprintf("%s: %s", s.Category.Title(), issue))
	}
	if len(out) == 0 && overall < 80 && len(enabled) > 0 {
		out = append(out, "Review and address the identified issues across all categories")
	}
	return out
}

// LowestScores recommends fixing the weakest categories first. Ties break on
// canonical category order so the output is stable.
type LowestScores struct {
	// Limit caps the per-category recommendations; zero means 3.
	Limit int
}

var cannedAdvice = map[model.Category]string{
	model.CategoryGDPR:          "Review cookie consent, privacy policy and data subject rights",
	model.CategoryAccessibility: "Add alt text, labels and landmarks for assistive technology",
	model.CategorySecurity:      "Enable HTTPS everywhere and add the missing security headers",
	model.CategoryPerformance:   "Reduce page weight and enable compression and caching",
	model.CategorySEO:           "Complete titles, meta descriptions and structured data",
}

func (l LowestScores) Recommend(enabled []Scored) []string {
	limit := l.Limit
	if limit <= 0 {
		limit = 3
	}

	sorted := append([]Scored(nil), enabled...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Result.Score != sorted[j].Result.Score {
			return sorted[i].Result.Score < sorted[j].Result.Score
		}
		return sorted[i].Category.Rank() < sorted[j].Category.Rank()
	})

	out := []string{}
	for _, s := range sorted {
		if len(out) >= limit {
			break
		}
		if s.Result.Score >= 90 {
			continue
		}
		advice := cannedAdvice[s.Category]
		if len(s.Result.Recommendations) > 0 {
			advice = s.Result.Recommendations[0]
		}
		out = append(out, fmt.Sprintf("%s (score %d): %s", s.Category.Title(), s.Result.Score, advice))
	}
	if len(enabled) < fullScanCategories {
		out = append(out, fullScanAdvice)
	}
	return out
}
