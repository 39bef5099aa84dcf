package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/compliscan/internal/model"
)

const (
	maxPageBytes      = 2 << 20
	slowResponse      = 3 * time.Second
	maxBlockingScript = 3
)

// NewPerformance returns the reference performance analyzer. It judges the
// landing page's own response; sub-resources are not fetched.
func NewPerformance() *Checklist {
	return NewChecklist(model.CategoryPerformance,
		Check{
			ID:             "page-size",
			Weight:         15,
			Recommendation: "Reduce the HTML payload by removing inline assets and unused markup",
			Test: func(_ context.Context, t *Target) string {
				if n := len(t.Page.Body); n > maxPageBytes {
					return fmt.Sprintf("Page size %d KB exceeds %d KB", n>>10, maxPageBytes>>10)
				}
				return ""
			},
		},
		Check{
			ID:             "response-time",
			Weight:         20,
			Recommendation: "Improve server response time with caching or a CDN",
			Test: func(_ context.Context, t *Target) string {
				if t.Page.Elapsed > slowResponse {
					return fmt.Sprintf("Slow response time: %d ms", t.Page.Elapsed.Milliseconds())
				}
				return ""
			},
		},
		Check{
			ID:             "compression",
			Weight:         15,
			Recommendation: "Enable gzip or brotli compression",
			Test: when("Compression not enabled", func(p *Page) bool {
				enc := strings.ToLower(p.Headers.Get("Content-Encoding"))
				return !strings.Contains(enc, "gzip") && !strings.Contains(enc, "br") && !strings.Contains(enc, "zstd")
			}),
		},
		Check{
			ID:             "cache-headers",
			Weight:         10,
			Recommendation: "Set Cache-Control or ETag headers so repeat visits can be served from cache",
			Test: when("No caching headers", func(p *Page) bool {
				return p.Headers.Get("Cache-Control") == "" && p.Headers.Get("ETag") == "" && p.Headers.Get("Expires") == ""
			}),
		},
		Check{
			ID:             "render-blocking",
			Weight:         15,
			Recommendation: "Load scripts with async or defer",
			Test: func(_ context.Context, t *Target) string {
				n := 0
				for _, s := range t.Page.Scripts {
					if !s.Inline && s.InHead && !s.Async && !s.Defer {
						n++
					}
				}
				if n > maxBlockingScript {
					return fmt.Sprintf("%d render-blocking scripts in head", n)
				}
				return ""
			},
		},
		Check{
			ID:             "lazy-images",
			Weight:         10,
			Recommendation: `Add loading="lazy" to below-the-fold images`,
			Test: func(_ context.Context, t *Target) string {
				imgs := t.Page.Doc.Find("img")
				if imgs.Length() <= 5 {
					return ""
				}
				lazy := imgs.FilterFunction(func(_ int, s *goquery.Selection) bool {
					return strings.EqualFold(attr(s, "loading"), "lazy")
				}).Length()
				if lazy == 0 {
					return fmt.Sprintf("%d images without lazy loading", imgs.Length())
				}
				return ""
			},
		},
		Check{
			ID:             "image-dimensions",
			Weight:         5,
			Recommendation: "Set width and height on images to avoid layout shifts",
			Test: func(_ context.Context, t *Target) string {
				n := t.Page.Doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return attr(s, "width") == "" || attr(s, "height") == ""
				}).Length()
				if n > 0 {
					return fmt.Sprintf("%d images missing width/height attributes", n)
				}
				return ""
			},
		},
	)
}
