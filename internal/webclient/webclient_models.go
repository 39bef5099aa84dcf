package webclient

import (
	"net/http"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	// Options carries backend-specific hints, e.g. "render": "false" to skip
	// the browser for a chromedp client.
	Options map[string]string
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int

	// FinalURL is the URL after redirects.
	FinalURL string

	// Elapsed is the time from sending the request to reading the last byte.
	Elapsed   time.Duration
	FetchedAt time.Time
}
