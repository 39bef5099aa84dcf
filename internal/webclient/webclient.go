// Package webclient fetches pages for analyzers and probes. Backends are
// registered by name and selected through Config.
package webclient

import "context"

// WebClient executes a single request and returns the full response.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)
	Close() error
}
