package analyzer

import (
	"strings"

	"github.com/raysh454/compliscan/internal/model"
)

var (
	consentMarkers = []string{
		"cookie-banner", "cookie-consent", "cookieconsent", "cookie_notice", "cookie-notice",
		"onetrust", "cookiebot", "didomi", "usercentrics", "quantcast", "gdpr-consent", "consent-banner",
	}
	trackerHosts = []string{
		"google-analytics.com", "googletagmanager.com", "connect.facebook.net", "hotjar.com",
		"doubleclick.net", "segment.com/analytics", "mixpanel.com", "clarity.ms",
	}
)

// NewGDPR returns the reference GDPR analyzer: consent, policy pages and
// data-subject rights, judged from the landing page.
func NewGDPR() *Checklist {
	return NewChecklist(model.CategoryGDPR,
		Check{
			ID:             "cookie-banner",
			Weight:         15,
			Recommendation: "Implement a cookie consent banner that clearly explains data collection and provides accept/reject options",
			Test:           when("No cookie consent banner found", func(p *Page) bool { return !hasConsentBanner(p) }),
		},
		Check{
			ID:             "cookie-reject",
			Weight:         5,
			Recommendation: "Add a reject option to the cookie banner that is as easy to use as accept",
			Test: when("Cookie banner found but missing reject option", func(p *Page) bool {
				return hasConsentBanner(p) && !p.ContainsAny("reject", "decline", "refuse", "deny", "only necessary", "necessary only")
			}),
		},
		Check{
			ID:             "privacy-policy",
			Weight:         15,
			Recommendation: "Create and prominently link to a comprehensive privacy policy",
			Test:           when("No privacy policy found", func(p *Page) bool { return !p.LinkMatching("privacy") }),
		},
		Check{
			ID:             "terms",
			Weight:         10,
			Recommendation: "Create and link to terms of service",
			Test: when("No terms of service found", func(p *Page) bool {
				return !p.LinkMatching("terms", "conditions", "tos", "legal")
			}),
		},
		Check{
			ID:             "cookie-policy",
			Weight:         10,
			Recommendation: "Create a detailed cookie policy explaining all cookie types and purposes",
			Test:           when("No cookie policy found", func(p *Page) bool { return !p.LinkMatching("cookie") }),
		},
		Check{
			ID:             "tracking-consent",
			Weight:         15,
			Recommendation: "Implement consent mechanism for third-party tracking and analytics",
			Test: when("Third-party tracking detected without proper consent mechanism", func(p *Page) bool {
				return loadsTrackers(p) && !hasConsentBanner(p)
			}),
		},
		Check{
			ID:             "data-rights",
			Weight:         10,
			Recommendation: "Clearly communicate all data subject rights including access, rectification, erasure, and objection",
			Test: when("Data subject rights not clearly communicated", func(p *Page) bool {
				return !p.ContainsAny("your rights", "data subject", "right to erasure", "right to access", "delete your data", "data request")
			}),
		},
		Check{
			ID:             "dpo-contact",
			Weight:         5,
			Recommendation: "Appoint and publish contact information for Data Protection Officer if required",
			Test: when("No Data Protection Officer contact information found", func(p *Page) bool {
				return !p.ContainsAny("data protection officer", "dpo@", "privacy@")
			}),
		},
		Check{
			ID:             "form-consent",
			Weight:         10,
			Recommendation: "Add an explicit consent checkbox and privacy notice to forms that collect personal data",
			Test: when("Personal data collection form detected without consent checkbox", func(p *Page) bool {
				return collectsPersonalData(p) && !formHasConsentCheckbox(p)
			}),
		},
	)
}

func hasConsentBanner(p *Page) bool {
	html := p.HTML()
	for _, m := range consentMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return strings.Contains(p.Text(), "we use cookies") || strings.Contains(p.Text(), "this site uses cookies")
}

func loadsTrackers(p *Page) bool {
	for _, s := range p.Scripts {
		src := strings.ToLower(s.Src)
		for _, h := range trackerHosts {
			if strings.Contains(src, h) {
				return true
			}
		}
	}
	return false
}

func collectsPersonalData(p *Page) bool {
	for _, f := range p.Forms {
		for _, in := range f.Inputs {
			name := strings.ToLower(in.Name + " " + in.ID)
			if in.Type == "email" || in.Type == "tel" ||
				strings.Contains(name, "email") || strings.Contains(name, "phone") || strings.Contains(name, "address") {
				return true
			}
		}
	}
	return false
}

func formHasConsentCheckbox(p *Page) bool {
	for _, f := range p.Forms {
		for _, in := range f.Inputs {
			name := strings.ToLower(in.Name + " " + in.ID)
			if in.Type == "checkbox" && (strings.Contains(name, "consent") || strings.Contains(name, "agree") ||
				strings.Contains(name, "privacy") || strings.Contains(name, "gdpr")) {
				return true
			}
		}
	}
	return false
}
