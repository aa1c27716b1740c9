// Package search looks up an application's file history in the patent
// office's document API and downloads office actions.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/httpretry"
)

const DefaultBaseURL = "https://api.uspto.gov/api/v1/patent/applications"

// Document codes for non-final and final rejections.
const (
	CodeNonFinalRejection = "CTNF"
	CodeFinalRejection    = "CTFR"
)

var ErrNoOfficeAction = errors.New("no office action found in file history")

type Document struct {
	Code        string    `json:"documentCode"`
	Description string    `json:"documentCodeDescriptionText"`
	Date        time.Time `json:"officialDate"`
	DownloadURL string    `json:"-"`
}

type documentsResponse struct {
	DocumentBag []struct {
		DocumentCode                string `json:"documentCode"`
		DocumentCodeDescriptionText string `json:"documentCodeDescriptionText"`
		OfficialDate                string `json:"officialDate"`
		DownloadOptionBag           []struct {
			MimeTypeIdentifier string `json:"mimeTypeIdentifier"`
			DownloadURL        string `json:"downloadUrl"`
		} `json:"downloadOptionBag"`
	} `json:"documentBag"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	http    *httpretry.Client
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("search api key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey, http: httpretry.New(cfg.Timeout), log: log}, nil
}

// Documents lists the file history of applicationNumber, newest first.
func (c *Client) Documents(ctx context.Context, applicationNumber string) ([]Document, error) {
	num := NormalizeApplicationNumber(applicationNumber)
	if num == "" {
		return nil, fmt.Errorf("application number %q is not valid", applicationNumber)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(num) + "/documents"
	body, attempts, err := c.http.Do(ctx, c.get(endpoint, "application/json"))
	if err != nil {
		c.log.Warn("search_documents_failed", zap.String("application_number", num), zap.Int("attempts", attempts), zap.Error(err))
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var parsed documentsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	out := make([]Document, 0, len(parsed.DocumentBag))
	for _, d := range parsed.DocumentBag {
		doc := Document{Code: strings.ToUpper(strings.TrimSpace(d.DocumentCode)), Description: d.DocumentCodeDescriptionText}
		doc.Date, _ = time.Parse(time.RFC3339, d.OfficialDate)
		if doc.Date.IsZero() {
			doc.Date, _ = time.Parse("2006-01-02", d.OfficialDate)
		}
		for _, opt := range d.DownloadOptionBag {
			if strings.EqualFold(opt.MimeTypeIdentifier, "PDF") {
				doc.DownloadURL = opt.DownloadURL
				break
			}
		}
		out = append(out, doc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// LatestOfficeAction returns the newest rejection in docs.
func LatestOfficeAction(docs []Document) (Document, error) {
	for _, d := range docs {
		if (d.Code == CodeNonFinalRejection || d.Code == CodeFinalRejection) && d.DownloadURL != "" {
			return d, nil
		}
	}
	return Document{}, ErrNoOfficeAction
}

// IsFirstAction reports whether docs contain exactly one non-final rejection.
// It is a heuristic over the file history, not a determination.
func IsFirstAction(docs []Document) bool {
	n := 0
	for _, d := range docs {
		if d.Code == CodeNonFinalRejection {
			n++
		}
	}
	return n == 1
}

// Download fetches the PDF for d.
func (c *Client) Download(ctx context.Context, d Document) ([]byte, error) {
	if d.DownloadURL == "" {
		return nil, fmt.Errorf("document %s has no download url", d.Code)
	}
	body, _, err := c.http.Do(ctx, c.get(d.DownloadURL, "application/pdf"))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", d.Code, err)
	}
	return body, nil
}

func (c *Client) get(endpoint, accept string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-API-KEY", c.apiKey)
		return req, nil
	}
}

// NormalizeApplicationNumber strips separators, e.g. "16/123,456" -> "16123456".
func NormalizeApplicationNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
