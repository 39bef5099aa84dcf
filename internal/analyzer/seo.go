package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/compliscan/internal/model"
)

const seoAgent = "Googlebot"

// NewSEO returns the reference SEO analyzer. The robots check fetches
// robots.txt through the target's client.
func NewSEO() *Checklist {
	return NewChecklist(model.CategorySEO,
		Check{
			ID:             "title",
			Weight:         15,
			Recommendation: "Add a unique title between 10 and 60 characters",
			Test: func(_ context.Context, t *Target) string {
				title := strings.TrimSpace(t.Page.Doc.Find("head title").First().Text())
				switch n := len([]rune(title)); {
				case n == 0:
					return "No meta title found"
				case n < 10:
					return "Title too short"
				case n > 60:
					return "Title too long"
				}
				return ""
			},
		},
		Check{
			ID:             "description",
			Weight:         15,
			Recommendation: "Add a meta description between 50 and 160 characters",
			Test: func(_ context.Context, t *Target) string {
				desc := metaContent(t.Page.Doc, `meta[name="description"]`)
				switch n := len([]rune(desc)); {
				case n == 0:
					return "No meta description found"
				case n < 50:
					return "Meta description too short"
				case n > 160:
					return "Meta description too long"
				}
				return ""
			},
		},
		Check{
			ID:             "canonical",
			Weight:         10,
			Recommendation: "Declare a canonical URL with link rel=canonical",
			Test: func(_ context.Context, t *Target) string {
				sel := t.Page.Doc.Find(`link[rel="canonical"]`)
				if sel.Length() == 0 {
					return "No canonical URL found"
				}
				if attr(sel.First(), "href") == "" {
					return "Empty canonical URL"
				}
				return ""
			},
		},
		Check{
			ID:             "open-graph",
			Weight:         10,
			Recommendation: "Add Open Graph tags (og:title, og:description, og:image) for social sharing",
			Test:           missingMeta("Open Graph", "property", "og:title", "og:description", "og:image"),
		},
		Check{
			ID:             "twitter-card",
			Weight:         5,
			Recommendation: "Add Twitter Card tags (twitter:card, twitter:title)",
			Test:           missingMeta("Twitter Card", "name", "twitter:card", "twitter:title"),
		},
		Check{
			ID:             "single-h1",
			Weight:         10,
			Recommendation: "Use exactly one H1 heading per page",
			Test: func(_ context.Context, t *Target) string {
				switch n := t.Page.Doc.Find("h1").Length(); {
				case n == 0:
					return "No H1 heading found"
				case n > 1:
					return "Multiple H1 headings found"
				}
				return ""
			},
		},
		Check{
			ID:             "structured-data",
			Weight:         10,
			Recommendation: "Add JSON-LD structured data (schema.org)",
			Test: func(_ context.Context, t *Target) string {
				blocks := t.Page.Doc.Find(`script[type="application/ld+json"]`)
				if blocks.Length() == 0 {
					return "No structured data found"
				}
				issue := ""
				blocks.EachWithBreak(func(i int, s *goquery.Selection) bool {
					if !json.Valid([]byte(s.Text())) {
						issue = fmt.Sprintf("Invalid JSON in structured data %d", i+1)
						return false
					}
					return true
				})
				return issue
			},
		},
		Check{
			ID:             "robots",
			Weight:         15,
			Recommendation: "Serve a robots.txt that allows crawling of public pages and declares a sitemap",
			Test:           robotsIssue,
		},
	)
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(attr(doc.Find(selector).First(), "content"))
}

func missingMeta(family, attrName string, keys ...string) func(context.Context, *Target) string {
	return func(_ context.Context, t *Target) string {
		var missing []string
		for _, k := range keys {
			if metaContent(t.Page.Doc, fmt.Sprintf(`meta[%s=%q]`, attrName, k)) == "" {
				missing = append(missing, k)
			}
		}
		switch {
		case len(missing) == len(keys):
			return fmt.Sprintf("No %s tags found", family)
		case len(missing) > 0:
			return fmt.Sprintf("Missing %s tags: %s", family, strings.Join(missing, ", "))
		}
		return ""
	}
}

func robotsIssue(ctx context.Context, t *Target) string {
	if noindex := strings.ToLower(metaContent(t.Page.Doc, `meta[name="robots"]`)); strings.Contains(noindex, "noindex") {
		return "Page is marked noindex"
	}
	robots, err := t.Robots(ctx)
	if err != nil {
		return "robots.txt could not be retrieved"
	}
	path := "/"
	if u, err := url.Parse(t.Page.FinalURL); err == nil && u.Path != "" {
		path = u.Path
	}
	if !robots.TestAgent(path, seoAgent) {
		return "robots.txt blocks crawling of this page"
	}
	if len(robots.Sitemaps) == 0 && t.Page.Doc.Find(`link[rel="sitemap"]`).Length() == 0 {
		return "No sitemap declared"
	}
	return ""
}
