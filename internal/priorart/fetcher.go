// Package priorart fetches description text for cited prior-art references.
package priorart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/office-action-response/internal/httpretry"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

const (
	DefaultBaseURL     = oa.PatentLookupBaseURL
	DefaultConcurrency = 4
	maxDescription     = 120000
)

var ErrNoDescription = errors.New("reference page has no description text")

type Config struct {
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
}

type Fetcher struct {
	baseURL     string
	concurrency int
	client      *httpretry.Client
	log         *zap.Logger
}

func NewFetcher(cfg Config, log *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/",
		concurrency: cfg.Concurrency,
		client:      httpretry.New(cfg.Timeout),
		log:         log,
	}
}

// Fetch returns the description of ref, falling back to its abstract.
func (f *Fetcher) Fetch(ctx context.Context, ref oa.PriorArtReference) (string, error) {
	if ref.ReferenceID == "" {
		return "", fmt.Errorf("reference %q has no lookup id", ref.Citation)
	}
	url := f.baseURL + ref.ReferenceID + "/en"
	body, attempts, err := f.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html")
		return req, nil
	})
	if err != nil {
		f.log.Warn("prior_art_fetch_failed", zap.String("reference_id", ref.ReferenceID), zap.Int("attempts", attempts), zap.Error(err))
		return "", fmt.Errorf("fetch %s: %w", ref.ReferenceID, err)
	}
	text, err := descriptionText(body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", ref.ReferenceID, err)
	}
	f.log.Debug("prior_art_fetched", zap.String("reference_id", ref.ReferenceID), zap.Int("chars", len(text)), zap.Int("attempts", attempts))
	return text, nil
}

// FetchAll fetches every reference concurrently. The result keeps the order
// of refs; any failure cancels the rest and is returned.
func (f *Fetcher) FetchAll(ctx context.Context, refs []oa.PriorArtReference) ([]oa.PriorArtDocument, error) {
	ctx, span := otel.Tracer("priorart").Start(ctx, "priorart.FetchAll")
	defer span.End()
	span.SetAttributes(attribute.Int("references", len(refs)))

	out := make([]oa.PriorArtDocument, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			text, err := f.Fetch(gctx, ref)
			if err != nil {
				return err
			}
			out[i] = oa.PriorArtDocument{ReferenceID: ref.ReferenceID, Description: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func descriptionText(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	for _, prop := range []string{"description", "abstract"} {
		if n := findItemprop(doc, prop); n != nil {
			var sb strings.Builder
			collectText(n, &sb, 0)
			text := strings.Join(strings.Fields(sb.String()), " ")
			if text != "" {
				if len(text) > maxDescription {
					text = text[:maxDescription]
				}
				return text, nil
			}
		}
	}
	return "", ErrNoDescription
}

func findItemprop(n *html.Node, prop string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "itemprop") == prop {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findItemprop(c, prop); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "svg":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, depth+1)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
