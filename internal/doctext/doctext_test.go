package doctext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBytesAcceptsPlainText(t *testing.T) {
	res, err := New().Bytes(context.Background(), []byte("  DETAILED ACTION\nClaims 1-3 are rejected.  "))
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if res.Method != "plain" || !strings.HasPrefix(res.Text, "DETAILED ACTION") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBytesFallsBackToPrintableRuns(t *testing.T) {
	c := &Converter{PdfToTextPath: filepath.Join(t.TempDir(), "missing-pdftotext")}
	blob := []byte("%PDF-1.4\x00\x01\x02Claims 1-20 are rejected under 35 U.S.C. 103.\x00\x03short\x00")
	res, err := c.Bytes(context.Background(), blob)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if res.Method != "byte-fallback" || !strings.Contains(res.Text, "Claims 1-20 are rejected") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if strings.Contains(res.Text, "short") {
		t.Fatal("short runs must be dropped")
	}
}

func TestBytesNoText(t *testing.T) {
	c := &Converter{PdfToTextPath: filepath.Join(t.TempDir(), "missing-pdftotext")}
	_, err := c.Bytes(context.Background(), []byte("%PDF\x00\x01\x02"))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestFileRejectsOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxPDFBytes + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := New().File(context.Background(), path); err == nil {
		t.Fatal("expected size error")
	}
}

func TestTruncateMarksLongText(t *testing.T) {
	res := truncate(strings.Repeat("a", maxTextRun+10), "plain")
	if !res.Truncated || !strings.HasSuffix(res.Text, "[TRUNCATED]") {
		t.Fatalf("expected truncation, got len=%d truncated=%v", len(res.Text), res.Truncated)
	}
}
