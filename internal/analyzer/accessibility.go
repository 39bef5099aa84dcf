package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/compliscan/internal/model"
)

// NewAccessibility returns the reference accessibility analyzer, a subset of
// WCAG checks that can be decided from static markup.
func NewAccessibility() *Checklist {
	return NewChecklist(model.CategoryAccessibility,
		Check{
			ID:             "img-alt",
			Weight:         15,
			Recommendation: "Add descriptive alt text to all images for screen readers",
			Test: func(_ context.Context, t *Target) string {
				missing := t.Page.Doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
					_, ok := s.Attr("alt")
					return !ok
				}).Length()
				if missing == 0 {
					return ""
				}
				return fmt.Sprintf("%d images missing alt text", missing)
			},
		},
		Check{
			ID:             "html-lang",
			Weight:         10,
			Recommendation: "Declare the page language with a lang attribute on the html element",
			Test: when("Missing lang attribute on html element", func(p *Page) bool {
				return attr(p.Doc.Find("html").First(), "lang") == ""
			}),
		},
		Check{
			ID:             "headings",
			Weight:         10,
			Recommendation: "Use proper heading hierarchy (h1, h2, h3, etc.) without skipping levels",
			Test: func(_ context.Context, t *Target) string {
				levels := headingLevels(t.Page)
				if len(levels) == 0 {
					return "No heading structure found"
				}
				for i := 1; i < len(levels); i++ {
					if levels[i] > levels[i-1]+1 {
						return "Improper heading hierarchy detected"
					}
				}
				return ""
			},
		},
		Check{
			ID:             "form-labels",
			Weight:         10,
			Recommendation: "Add proper labels to all form inputs",
			Test: func(_ context.Context, t *Target) string {
				if n := unlabeledInputs(t.Page); n > 0 {
					return fmt.Sprintf("%d form inputs missing labels", n)
				}
				return ""
			},
		},
		Check{
			ID:             "landmarks",
			Weight:         10,
			Recommendation: "Use semantic HTML elements (nav, main, header, footer) or ARIA landmark roles",
			Test: when("Limited semantic HTML usage", func(p *Page) bool {
				return p.Doc.Find("main, nav, header, footer, [role=main], [role=navigation]").Length() == 0
			}),
		},
		Check{
			ID:             "skip-link",
			Weight:         5,
			Recommendation: "Add skip links for keyboard users",
			Test: when("No skip navigation links", func(p *Page) bool {
				return p.Doc.Find(`a[href^="#"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
					txt := strings.ToLower(s.Text() + " " + attr(s, "class"))
					return strings.Contains(txt, "skip")
				}).Length() == 0
			}),
		},
		Check{
			ID:             "button-names",
			Weight:         10,
			Recommendation: "Give every button and icon link an accessible name via text or aria-label",
			Test: when("Missing ARIA labels", func(p *Page) bool {
				return p.Doc.Find("button, a").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return strings.TrimSpace(s.Text()) == "" && attr(s, "aria-label") == "" &&
						attr(s, "aria-labelledby") == "" && attr(s, "title") == "" &&
						s.Find("img[alt]").Length() == 0
				}).Length() > 0
			}),
		},
	)
}

func headingLevels(p *Page) []int {
	var levels []int
	p.Doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h")); err == nil {
			levels = append(levels, n)
		}
	})
	return levels
}

func unlabeledInputs(p *Page) int {
	labelled := map[string]bool{}
	p.Doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		labelled[attr(s, "for")] = true
	})
	n := 0
	p.Doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		switch strings.ToLower(attr(s, "type")) {
		case "hidden", "submit", "button", "reset", "image":
			return
		}
		if id := attr(s, "id"); id != "" && labelled[id] {
			return
		}
		if attr(s, "aria-label") != "" || attr(s, "aria-labelledby") != "" || s.ParentsFiltered("label").Length() > 0 {
			return
		}
		n++
	})
	return n
}
