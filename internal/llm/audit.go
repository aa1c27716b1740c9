package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type AuditEntry struct {
	Stage   string    `json:"stage"`
	Attempt int       `json:"attempt"`
	Raw     string    `json:"raw"`
	Cleaned string    `json:"cleaned,omitempty"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// AuditSink receives raw and cleaned generator output for every attempt.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

type NopSink struct{}

func (NopSink) Record(context.Context, AuditEntry) {}

type MemorySink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *MemorySink) Record(_ context.Context, entry AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *MemorySink) Entries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// FileSink writes one JSON file per attempt. Write failures are dropped.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("audit dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) Record(_ context.Context, entry AuditEntry) {
	blob, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return
	}
	name := fmt.Sprintf("%s-%s-%d.json", entry.At.UTC().Format("20060102T150405.000000000"), entry.Stage, entry.Attempt)
	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}
