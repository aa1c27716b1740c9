// Package doctext converts uploaded PDF documents to plain text.
package doctext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxPDFBytes = 20 * 1024 * 1024
	maxTextRun  = 400000
)

var ErrNoText = errors.New("no extractable text found")

type Result struct {
	Text      string
	Method    string
	Truncated bool
}

// Converter runs pdftotext and falls back to printable byte runs when the
// tool is missing or returns nothing.
type Converter struct {
	PdfToTextPath string
}

func New() *Converter {
	return &Converter{PdfToTextPath: "pdftotext"}
}

func (c *Converter) File(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.Size() > MaxPDFBytes {
		return Result{}, fmt.Errorf("pdf too large: %d bytes", info.Size())
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return c.Bytes(ctx, blob)
}

func (c *Converter) Bytes(ctx context.Context, blob []byte) (Result, error) {
	if len(blob) > MaxPDFBytes {
		return Result{}, fmt.Errorf("pdf too large: %d bytes", len(blob))
	}
	if !bytes.HasPrefix(bytes.TrimSpace(blob), []byte("%PDF")) {
		if utf8.Valid(blob) && strings.TrimSpace(string(blob)) != "" {
			return truncate(string(blob), "plain"), nil
		}
	}
	if text, err := c.runPdfToText(ctx, blob); err == nil && strings.TrimSpace(text) != "" {
		return truncate(text, "pdftotext"), nil
	}
	fallback := extractPrintableText(blob)
	if strings.TrimSpace(fallback) == "" {
		return Result{}, ErrNoText
	}
	return truncate(fallback, "byte-fallback"), nil
}

func (c *Converter) runPdfToText(ctx context.Context, blob []byte) (string, error) {
	bin := c.PdfToTextPath
	if bin == "" {
		bin = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, bin, "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(blob)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func extractPrintableText(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= 24 {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(strings.Join(runs, "\n"))
}

func truncate(text, method string) Result {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= maxTextRun {
		return Result{Text: trimmed, Method: method}
	}
	prefix := trimmed[:maxTextRun]
	for !utf8.ValidString(prefix) {
		prefix = prefix[:len(prefix)-1]
	}
	return Result{Text: prefix + "\n\n[TRUNCATED]", Method: method, Truncated: true}
}
