package webclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/compliscan/internal/logging"
)

// ChromedpClient renders pages in headless Chrome so script-injected markup
// (consent banners, late meta tags) is visible to analyzers. Non-GET requests
// and requests with Options["render"] == "false" go through net/http.
type ChromedpClient struct {
	cfg         Config
	logger      logging.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	plain       *NetHTTPClient
}

func NewChromedpClient(cfg Config, logger logging.Logger) (*ChromedpClient, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "chromedp"})

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Headful),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	plain, err := NewNetHTTPClient(cfg, logger, nil)
	if err != nil {
		allocCancel()
		return nil, err
	}

	componentLogger.Debug("created chromedp webclient",
		logging.Field{Key: "render_idle", Value: cfg.RenderIdle.String()})

	return &ChromedpClient{
		cfg:         cfg,
		logger:      componentLogger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		plain:       plain,
	}, nil
}

// waitNetworkIdle returns a channel that receives once no request has been in
// flight for idleAfter. kick arms the timer explicitly, for pages that finish
// loading without issuing further requests.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) (idle <-chan struct{}, kick func()) {
	idleChan := make(chan struct{}, 1)
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) <= 0 {
				once.Do(func() { idleChan <- struct{}{} })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		}
	})

	return idleChan, startTimer
}

func (c *ChromedpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	method := strings.ToUpper(req.Method)
	if (method != "" && method != http.MethodGet) || req.Options["render"] == "false" {
		return c.plain.Do(ctx, req)
	}

	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()
	runCtx, cancelRun := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelRun()

	// Follow the caller's cancellation even though the tab hangs off the allocator.
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	var (
		docMu   sync.Mutex
		status  int
		headers = http.Header{}
	)
	chromedp.ListenTarget(runCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		docMu.Lock()
		defer docMu.Unlock()
		if status != 0 {
			return
		}
		status = int(e.Response.Status)
		for k, v := range e.Response.Headers {
			headers.Set(k, fmt.Sprint(v))
		}
	})
	idle, kick := waitNetworkIdle(runCtx, c.cfg.RenderIdle)

	start := time.Now()
	if err := chromedp.Run(runCtx, network.Enable(), chromedp.Navigate(req.URL)); err != nil {
		c.logger.Warn("chromedp navigation failed",
			logging.Field{Key: "url", Value: req.URL},
			logging.Err(err))
		return nil, fmt.Errorf("navigate: %w", err)
	}
	kick()

	select {
	case <-idle:
	case <-runCtx.Done():
		return nil, fmt.Errorf("wait for network idle: %w", runCtx.Err())
	}

	var html, location string
	if err := chromedp.Run(runCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, fmt.Errorf("capture dom: %w", err)
	}

	docMu.Lock()
	defer docMu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		Request:    req,
		Headers:    headers,
		Body:       []byte(html),
		StatusCode: status,
		FinalURL:   location,
		Elapsed:    time.Since(start),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (c *ChromedpClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

// Close shuts down the browser allocator.
func (c *ChromedpClient) Close() error {
	c.allocCancel()
	return c.plain.Close()
}
