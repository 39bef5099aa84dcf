// Package analyzer defines the pluggable category analyzers a scan runs and
// ships heuristic reference implementations for all five categories.
package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/utils"
	"github.com/raysh454/compliscan/internal/webclient"
)

// Analyzer evaluates one compliance category of a target.
type Analyzer interface {
	Category() model.Category
	Run(ctx context.Context, t *Target) (*model.CategoryResult, error)
}

// Target is what an analyzer inspects: the page loaded once per scan, the
// scan's options and a client for auxiliary fetches such as robots.txt.
type Target struct {
	URL     string
	Options model.ScanOptions
	Page    *Page

	client webclient.WebClient

	robotsOnce sync.Once
	robots     *robotstxt.RobotsData
	robotsErr  error
}

// NewTarget binds a loaded page to the client used for follow-up requests.
func NewTarget(url string, opts model.ScanOptions, page *Page, client webclient.WebClient) *Target {
	return &Target{URL: url, Options: opts, Page: page, client: client}
}

// Robots fetches and parses the site's robots.txt once per target. Analyzers
// running in parallel share the result.
func (t *Target) Robots(ctx context.Context) (*robotstxt.RobotsData, error) {
	t.robotsOnce.Do(func() {
		if t.client == nil {
			t.robotsErr = fmt.Errorf("no client to fetch robots.txt")
			return
		}
		base := t.URL
		if t.Page != nil && t.Page.FinalURL != "" {
			base = t.Page.FinalURL
		}
		origin := utils.Origin(base)
		if origin == "" {
			t.robotsErr = fmt.Errorf("cannot derive origin from %q", base)
			return
		}
		resp, err := t.client.Get(ctx, origin+"/robots.txt")
		if err != nil {
			t.robotsErr = fmt.Errorf("fetch robots.txt: %w", err)
			return
		}
		t.robots, t.robotsErr = robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	})
	return t.robots, t.robotsErr
}

// Set holds at most one analyzer per category.
type Set struct {
	byCategory map[model.Category]Analyzer
}

// NewSet registers the given analyzers; a later analyzer replaces an earlier
// one for the same category.
func NewSet(analyzers ...Analyzer) *Set {
	s := &Set{byCategory: make(map[model.Category]Analyzer, len(analyzers))}
	for _, a := range analyzers {
		if a != nil {
			s.byCategory[a.Category()] = a
		}
	}
	return s
}

// Default returns the reference analyzers for every category.
func Default() *Set {
	return NewSet(NewGDPR(), NewAccessibility(), NewSecurity(), NewPerformance(), NewSEO())
}

// Get returns the analyzer for c.
func (s *Set) Get(c model.Category) (Analyzer, bool) {
	a, ok := s.byCategory[c]
	return a, ok
}

// For returns the analyzers enabled by opts in canonical category order. It
// fails if an enabled category has no analyzer.
func (s *Set) For(opts model.ScanOptions) ([]Analyzer, error) {
	var out []Analyzer
	for _, c := range opts.Enabled() {
		a, ok := s.byCategory[c]
		if !ok {
			return nil, fmt.Errorf("no analyzer registered for category %q", c)
		}
		out = append(out, a)
	}
	return out, nil
}
