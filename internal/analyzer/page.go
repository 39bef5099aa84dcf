package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/compliscan/internal/webclient"
)

// Page is a fetched and parsed HTML document together with the response
// metadata analyzers look at.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration

	Doc     *goquery.Document
	Forms   []Form
	Scripts []Script
	Cookies []Cookie

	text string
	html string
}

// Form is an HTML form with its named inputs.
type Form struct {
	Action string
	Method string
	Inputs []FormInput
}

type FormInput struct {
	Name     string
	ID       string
	Type     string
	Required bool
}

// Script is a <script> element; Src is empty for inline scripts.
type Script struct {
	Src    string
	Inline bool
	Async  bool
	Defer  bool
	InHead bool
}

// Cookie holds the security-relevant attributes of a Set-Cookie header.
type Cookie struct {
	Name     string
	Secure   bool
	HttpOnly bool
	SameSite string
}

// LoadPage fetches url through wc and parses the result. Only transport
// errors are returned; an HTTP error status still yields a Page.
func LoadPage(ctx context.Context, wc webclient.WebClient, url string) (*Page, error) {
	resp, err := wc.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewPage(resp)
}

// NewPage builds a Page from a webclient response.
func NewPage(resp *webclient.Response) (*Page, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}
	url := ""
	if resp.Request != nil {
		url = resp.Request.URL
	}
	final := resp.FinalURL
	if final == "" {
		final = url
	}
	return ParsePage(url, final, resp.StatusCode, resp.Headers, resp.Body, resp.Elapsed)
}

// ParsePage parses body and extracts forms, scripts and cookies.
func ParsePage(url, finalURL string, status int, headers http.Header, body []byte, elapsed time.Duration) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if headers == nil {
		headers = http.Header{}
	}
	p := &Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: status,
		Headers:    headers,
		Body:       body,
		Elapsed:    elapsed,
		Doc:        doc,
	}
	p.extractForms()
	p.extractScripts()
	p.extractCookies()
	p.text = strings.ToLower(doc.Find("body").Text())
	p.html = strings.ToLower(string(body))
	return p, nil
}

// Text is the lowercased visible text of the body.
func (p *Page) Text() string { return p.text }

// HTML is the lowercased raw markup, for marker searches that include
// attributes and inline scripts.
func (p *Page) HTML() string { return p.html }

// ContainsAny reports whether the page text or markup contains any of needles.
func (p *Page) ContainsAny(needles ...string) bool {
	for _, n := range needles {
		n = strings.ToLower(n)
		if strings.Contains(p.text, n) || strings.Contains(p.html, n) {
			return true
		}
	}
	return false
}

// LinkMatching reports whether some anchor's href or text contains any of needles.
func (p *Page) LinkMatching(needles ...string) bool {
	found := false
	p.Doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.ToLower(attr(a, "href"))
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		for _, n := range needles {
			if strings.Contains(href, n) || strings.Contains(text, n) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func (p *Page) extractForms() {
	p.Doc.Find("form").Each(func(_ int, formSel *goquery.Selection) {
		method := strings.ToUpper(attr(formSel, "method"))
		if method == "" {
			method = http.MethodGet
		}
		form := Form{Action: attr(formSel, "action"), Method: method}

		formSel.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
			typ := strings.ToLower(attr(in, "type"))
			if typ == "" {
				typ = "text"
			}
			_, required := in.Attr("required")
			form.Inputs = append(form.Inputs, FormInput{
				Name:     attr(in, "name"),
				ID:       attr(in, "id"),
				Type:     typ,
				Required: required,
			})
		})
		p.Forms = append(p.Forms, form)
	})
}

func (p *Page) extractScripts() {
	p.Doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		_, async := s.Attr("async")
		_, deferred := s.Attr("defer")
		src := attr(s, "src")
		p.Scripts = append(p.Scripts, Script{
			Src:    src,
			Inline: src == "",
			Async:  async,
			Defer:  deferred || strings.EqualFold(attr(s, "type"), "module"),
			InHead: s.ParentsFiltered("head").Length() > 0,
		})
	})
}

func (p *Page) extractCookies() {
	for _, v := range p.Headers.Values("Set-Cookie") {
		if c, ok := parseCookie(v); ok {
			p.Cookies = append(p.Cookies, c)
		}
	}
}

// parseCookie reads the name and the flags analyzers care about from a
// Set-Cookie header value.
func parseCookie(header string) (Cookie, bool) {
	parts := strings.Split(header, ";")
	name, _, _ := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if name == "" {
		return Cookie{}, false
	}
	c := Cookie{Name: name}
	for _, part := range parts[1:] {
		a := strings.TrimSpace(part)
		lower := strings.ToLower(a)
		switch {
		case lower == "secure":
			c.Secure = true
		case lower == "httponly":
			c.HttpOnly = true
		case strings.HasPrefix(lower, "samesite="):
			c.SameSite = a[len("samesite="):]
		}
	}
	return c, true
}

func attr(sel *goquery.Selection, name string) string {
	if v, ok := sel.Attr(name); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
