package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/raysh454/compliscan/internal/model"
)

// Check is one weighted heuristic. Test returns an issue description when
// the check fails and "" when it passes.
type Check struct {
	ID             string
	Weight         int
	Recommendation string
	Test           func(ctx context.Context, t *Target) string
}

// Checklist is an Analyzer that scores a page as 100 minus the weights of
// the failed checks, clamped to 0..100.
type Checklist struct {
	category model.Category
	checks   []Check
}

// NewChecklist builds a checklist analyzer for category.
func NewChecklist(category model.Category, checks ...Check) *Checklist {
	return &Checklist{category: category, checks: checks}
}

func (c *Checklist) Category() model.Category { return c.category }

// Checks returns the check IDs in evaluation order.
func (c *Checklist) Checks() []string {
	ids := make([]string, len(c.checks))
	for i, ch := range c.checks {
		ids[i] = ch.ID
	}
	return ids
}

// Run evaluates every check not disabled by a "-<check id>" custom rule.
func (c *Checklist) Run(ctx context.Context, t *Target) (*model.CategoryResult, error) {
	if t == nil || t.Page == nil {
		return nil, fmt.Errorf("%s: no page loaded", c.category)
	}
	disabled := disabledChecks(t.Options.CustomRules)

	res := &model.CategoryResult{Score: 100, Issues: []string{}, Recommendations: []string{}}
	for _, ch := range c.checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if disabled[ch.ID] {
			continue
		}
		issue := ch.Test(ctx, t)
		if issue == "" {
			continue
		}
		res.Score -= ch.Weight
		res.Issues = append(res.Issues, issue)
		res.Recommendations = append(res.Recommendations, ch.Recommendation)
	}
	res.Score = clamp(res.Score)
	return res, nil
}

func disabledChecks(rules []string) map[string]bool {
	out := map[string]bool{}
	for _, r := range rules {
		if id, ok := strings.CutPrefix(strings.TrimSpace(r), "-"); ok && id != "" {
			out[id] = true
		}
	}
	return out
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// when turns a predicate into a Test that reports issue if bad holds.
func when(issue string, bad func(p *Page) bool) func(context.Context, *Target) string {
	return func(_ context.Context, t *Target) string {
		if bad(t.Page) {
			return issue
		}
		return ""
	}
}
