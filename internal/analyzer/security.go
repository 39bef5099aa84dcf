package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/compliscan/internal/model"
	"github.com/raysh454/compliscan/internal/utils"
)

// NewSecurity returns the reference security analyzer: transport, response
// headers and cookie flags.
func NewSecurity() *Checklist {
	return NewChecklist(model.CategorySecurity,
		Check{
			ID:             "https",
			Weight:         25,
			Recommendation: "Implement SSL/TLS encryption for secure data transmission",
			Test:           when("Website not using HTTPS", func(p *Page) bool { return !utils.IsHTTPS(p.FinalURL) }),
		},
		headerCheck("hsts", "Strict-Transport-Security", 10,
			"No HTTP Strict Transport Security",
			"Enable HSTS header to enforce HTTPS connections"),
		headerCheck("csp", "Content-Security-Policy", 15,
			"No Content Security Policy found",
			"Implement Content Security Policy to prevent XSS attacks"),
		Check{
			ID:             "frame-options",
			Weight:         10,
			Recommendation: "Send X-Frame-Options or a CSP frame-ancestors directive to prevent clickjacking",
			Test: when("Clickjacking protection not detected", func(p *Page) bool {
				return p.Headers.Get("X-Frame-Options") == "" &&
					!strings.Contains(strings.ToLower(p.Headers.Get("Content-Security-Policy")), "frame-ancestors")
			}),
		},
		headerCheck("content-type-options", "X-Content-Type-Options", 5,
			"No X-Content-Type-Options header",
			"Set X-Content-Type-Options: nosniff"),
		headerCheck("referrer-policy", "Referrer-Policy", 5,
			"No Referrer Policy header",
			"Set a Referrer-Policy such as strict-origin-when-cross-origin"),
		headerCheck("permissions-policy", "Permissions-Policy", 5,
			"No Permissions Policy header",
			"Restrict browser features with a Permissions-Policy header"),
		Check{
			ID:             "cookie-flags",
			Weight:         10,
			Recommendation: "Set Secure and HttpOnly flags for cookies",
			Test: func(_ context.Context, t *Target) string {
				var weak []string
				for _, c := range t.Page.Cookies {
					if !c.Secure || !c.HttpOnly {
						weak = append(weak, c.Name)
					}
				}
				if len(weak) == 0 {
					return ""
				}
				return fmt.Sprintf("Cookies without Secure/HttpOnly flags: %s", strings.Join(weak, ", "))
			},
		},
		Check{
			ID:             "mixed-content",
			Weight:         10,
			Recommendation: "Load every script, stylesheet and image over HTTPS",
			Test: when("Mixed content: HTTPS page loads resources over HTTP", func(p *Page) bool {
				return utils.IsHTTPS(p.FinalURL) && hasInsecureResource(p)
			}),
		},
		Check{
			ID:             "server-disclosure",
			Weight:         5,
			Recommendation: "Remove version details from Server and X-Powered-By headers",
			Test: when("Information disclosure detected", func(p *Page) bool {
				return p.Headers.Get("X-Powered-By") != "" || strings.ContainsAny(p.Headers.Get("Server"), "0123456789")
			}),
		},
	)
}

func headerCheck(id, header string, weight int, issue, rec string) Check {
	return Check{
		ID:             id,
		Weight:         weight,
		Recommendation: rec,
		Test:           when(issue, func(p *Page) bool { return p.Headers.Get(header) == "" }),
	}
}

func hasInsecureResource(p *Page) bool {
	insecure := false
	p.Doc.Find("script[src], link[href][rel=stylesheet], img[src], iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ref := attr(s, "src")
		if ref == "" {
			ref = attr(s, "href")
		}
		if strings.HasPrefix(strings.ToLower(ref), "http://") {
			insecure = true
			return false
		}
		return true
	})
	return insecure
}
