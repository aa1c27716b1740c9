// Package llmtest provides a scripted llm.Generator for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/joelkehle/office-action-response/internal/llm"
)

type Reply struct {
	Text string
	Err  error
}

// Generator replays Replies in order; once they run out it returns Fallback.
type Generator struct {
	mu       sync.Mutex
	Replies  []Reply
	Fallback Reply
	Requests []llm.Request
}

func New(texts ...string) *Generator {
	g := &Generator{}
	for _, t := range texts {
		g.Replies = append(g.Replies, Reply{Text: t})
	}
	return g
}

func (g *Generator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := len(g.Requests)
	g.Requests = append(g.Requests, req)
	if idx < len(g.Replies) {
		return g.Replies[idx].Text, g.Replies[idx].Err
	}
	return g.Fallback.Text, g.Fallback.Err
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// Last returns the most recent request, or the zero Request.
func (g *Generator) Last() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return llm.Request{}
	}
	return g.Requests[len(g.Requests)-1]
}
