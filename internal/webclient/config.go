package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config selects and tunes a backend. It is filled from config.WebClient so
// this package does not import the config layer.
type Config struct {
	Client    Client
	Timeout   time.Duration
	UserAgent string

	// RenderIdle is how long the network must stay quiet before chromedp
	// captures the DOM.
	RenderIdle time.Duration
	Headful    bool
}

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRenderIdle = 2 * time.Second
	DefaultUserAgent  = "compliscan/1.0"
)

func (c Config) withDefaults() Config {
	if c.Client == "" {
		c.Client = ClientNetHTTP
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RenderIdle <= 0 {
		c.RenderIdle = DefaultRenderIdle
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}
