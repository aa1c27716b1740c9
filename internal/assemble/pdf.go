package assemble

import (
	"context"
	"encoding/base64"
	"fmt"
	stdhtml "html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const printCSS = `body{font-family:"Times New Roman",Times,serif;font-size:12pt;line-height:1.5;color:#111;margin:0;padding:0.6rem;}
h1{font-size:16pt;text-align:center;margin-bottom:0.5rem;}
h2{font-size:13pt;border-bottom:1px solid #999;padding-bottom:0.15rem;margin-top:1.2rem;}
h3{font-size:12pt;margin-top:1rem;}
h4{font-size:11pt;font-style:italic;margin-top:0.8rem;}
table{width:100%;border-collapse:collapse;font-size:10pt;}
th,td{border:1px solid #888;padding:0.3rem 0.4rem;text-align:left;vertical-align:top;}
thead th{background:#eee;}
a{color:#1d4ed8;text-decoration:underline;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{@page{size:auto;margin:12mm;} body{padding:0;}}`

var rejectionHeadingRe = regexp.MustCompile(`<h2([^>]*)>\s*(Rejection\s+([0-9]+):[^<]*)\s*</h2>`)

// PDFRenderer prints the Markdown rendering of a document through headless
// Chromium.
type PDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

// NewPDFRenderer uses chromePath when set, otherwise the first Chromium found
// in the usual locations.
func NewPDFRenderer(chromePath string) *PDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	return &PDFRenderer{chromePath: chromePath, timeout: 30 * time.Second}
}

func (r *PDFRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	htmlDoc, err := buildHTML(doc)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(1).
				WithMarginRight(1).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

func buildHTML(doc *Document) (string, error) {
	var content strings.Builder
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	if err := md.Convert([]byte(RenderMarkdown(doc)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := "Response to Office Action"
	if n := strings.TrimSpace(doc.TitleBlock.ApplicationNumber); n != "" {
		title += " " + n
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + stdhtml.EscapeString(title) + "</title>" +
		"<style>" + printCSS + "</style></head><body>" +
		applyPrintLayoutHooks(content.String()) +
		"</body></html>", nil
}

// applyPrintLayoutHooks starts every rejection after the first on a new page.
func applyPrintLayoutHooks(contentHTML string) string {
	return rejectionHeadingRe.ReplaceAllStringFunc(contentHTML, func(m string) string {
		sub := rejectionHeadingRe.FindStringSubmatch(m)
		if sub[3] == "1" {
			return m
		}
		return `<h2` + sub[1] + ` data-page-break-before="true">` + sub[2] + `</h2>`
	})
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
