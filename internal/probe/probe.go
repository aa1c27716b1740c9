// Package probe counts the claims of a published application by loading its
// public page in headless Chromium.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	DefaultURLTemplate = "https://patents.google.com/patent/{number}/en"
	DefaultSelector    = "div.claims div.claim[num]"
)

var ErrNotConfigured = errors.New("claim probe not configured")

// Session is one browser session. Close releases everything it holds and is
// safe to call more than once.
type Session interface {
	CountNodes(ctx context.Context, pageURL, selector string) (int, error)
	Close()
}

// Opener acquires a Session.
type Opener func(ctx context.Context) (Session, error)

type Config struct {
	URLTemplate string
	Selector    string
	ChromePath  string
	Timeout     time.Duration
}

type ClaimCounter struct {
	urlTemplate string
	selector    string
	timeout     time.Duration
	open        Opener
	log         *zap.Logger
}

func NewClaimCounter(cfg Config, log *zap.Logger) *ClaimCounter {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.Selector == "" {
		cfg.Selector = DefaultSelector
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.ChromePath == "" {
		cfg.ChromePath = detectChromePath()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ClaimCounter{
		urlTemplate: cfg.URLTemplate,
		selector:    cfg.Selector,
		timeout:     cfg.Timeout,
		open:        chromeOpener(cfg.ChromePath),
		log:         log,
	}
}

// WithOpener replaces the browser backend.
func (c *ClaimCounter) WithOpener(open Opener) *ClaimCounter {
	c.open = open
	return c
}

// PageURL renders the template for publicationNumber.
func (c *ClaimCounter) PageURL(publicationNumber string) (string, error) {
	num := strings.ToUpper(strings.Join(strings.Fields(publicationNumber), ""))
	num = strings.NewReplacer("-", "", "/", "", ",", "").Replace(num)
	if num == "" {
		return "", fmt.Errorf("%w: publication number is empty", ErrNotConfigured)
	}
	if !strings.Contains(c.urlTemplate, "{number}") {
		return "", fmt.Errorf("%w: url template has no {number} placeholder", ErrNotConfigured)
	}
	return strings.ReplaceAll(c.urlTemplate, "{number}", url.PathEscape(num)), nil
}

// Count returns the number of claims on the publication page. The browser
// session is released on every return path.
func (c *ClaimCounter) Count(ctx context.Context, publicationNumber string) (int, error) {
	pageURL, err := c.PageURL(publicationNumber)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sess, err := c.open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open browser: %w", err)
	}
	defer sess.Close()

	start := time.Now()
	n, err := sess.CountNodes(ctx, pageURL, c.selector)
	if err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	c.log.Info("claim_probe_done",
		zap.String("publication_number", publicationNumber),
		zap.Int("claims", n),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return n, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
}

func chromeOpener(chromePath string) Opener {
	return func(ctx context.Context) (Session, error) {
		opts := []chromedp.ExecAllocatorOption{
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("disable-dev-shm-usage", true),
		}
		if chromePath != "" {
			opts = append(opts, chromedp.ExecPath(chromePath))
		}
		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
		taskCtx, taskCancel := chromedp.NewContext(allocCtx)
		// Start the browser now so a launch failure surfaces here.
		if err := chromedp.Run(taskCtx); err != nil {
			taskCancel()
			allocCancel()
			return nil, err
		}
		return &chromeSession{ctx: taskCtx, cancel: func() {
			taskCancel()
			allocCancel()
		}}, nil
	}
}

func (s *chromeSession) CountNodes(_ context.Context, pageURL, selector string) (int, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *chromeSession) Close() { s.cancel() }

func detectChromePath() string {
	for _, p := range []string{
		os.Getenv("CHROME_PATH"),
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
	} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
