// Package history compares two completed scans of the same target.
package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/compliscan/internal/model"
)

var ErrNotComparable = errors.New("scans are not comparable")

// Comparison is the change from Base to Head.
type Comparison struct {
	BaseScanID     string         `json:"baseScanId"`
	HeadScanID     string         `json:"headScanId"`
	BaseScore      int            `json:"baseScore"`
	HeadScore      int            `json:"headScore"`
	ScoreDelta     int            `json:"scoreDelta"`
	BaseGrade      string         `json:"baseGrade"`
	HeadGrade      string         `json:"headGrade"`
	Categories     []CategoryDiff `json:"categories"`
	NewIssues      int            `json:"newIssues"`
	ResolvedIssues int            `json:"resolvedIssues"`
}

// CategoryDiff is the change in one category. A score is nil when the
// category was not enabled in that scan.
type CategoryDiff struct {
	Category       model.Category `json:"category"`
	BaseScore      *int           `json:"baseScore,omitempty"`
	HeadScore      *int           `json:"headScore,omitempty"`
	Delta          int            `json:"delta"`
	NewIssues      []string       `json:"newIssues"`
	ResolvedIssues []string       `json:"resolvedIssues"`
}

// Compare diffs head against base. Both must be completed scans of the same
// target.
func Compare(base, head *model.Scan) (*Comparison, error) {
	if base == nil || head == nil {
		return nil, fmt.Errorf("%w: missing scan", ErrNotComparable)
	}
	if base.URLID != head.URLID {
		return nil, fmt.Errorf("%w: different targets", ErrNotComparable)
	}
	if base.Status != model.ScanCompleted || base.Results == nil ||
		head.Status != model.ScanCompleted || head.Results == nil {
		return nil, fmt.Errorf("%w: both scans must be completed", ErrNotComparable)
	}

	c := &Comparison{
		BaseScanID: base.ID,
		HeadScanID: head.ID,
		BaseScore:  base.Results.Overall.Score,
		HeadScore:  head.Results.Overall.Score,
		ScoreDelta: head.Results.Overall.Score - base.Results.Overall.Score,
		BaseGrade:  base.Results.Overall.Grade,
		HeadGrade:  head.Results.Overall.Grade,
		Categories: []CategoryDiff{},
	}
	for _, cat := range model.Categories {
		b, h := base.Results.Get(cat), head.Results.Get(cat)
		if b == nil && h == nil {
			continue
		}
		d := CategoryDiff{Category: cat}
		var baseIssues, headIssues []string
		if b != nil {
			d.BaseScore = intPtr(b.Score)
			baseIssues = b.Issues
		}
		if h != nil {
			d.HeadScore = intPtr(h.Score)
			headIssues = h.Issues
		}
		if b != nil && h != nil {
			d.Delta = h.Score - b.Score
		}
		d.NewIssues, d.ResolvedIssues = diffIssues(baseIssues, headIssues)
		c.NewIssues += len(d.NewIssues)
		c.ResolvedIssues += len(d.ResolvedIssues)
		c.Categories = append(c.Categories, d)
	}
	return c, nil
}

// diffIssues runs a line diff over the two issue lists; inserted lines are
// new issues and deleted lines are resolved ones.
func diffIssues(base, head []string) (added, removed []string) {
	added, removed = []string{}, []string{}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(joinLines(base), joinLines(head))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		for _, line := range strings.Split(d.Text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				added = append(added, line)
			case diffmatchpatch.DiffDelete:
				removed = append(removed, line)
			}
		}
	}
	return added, removed
}

func joinLines(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString(strings.ReplaceAll(it, "\n", " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func intPtr(v int) *int { return &v }
