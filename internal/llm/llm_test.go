package llm

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joelkehle/office-action-response/internal/apperr"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(context.Context, Request) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", nil
}

type payload struct {
	Items []int  `json:"items"`
	Name  string `json:"name"`
}

func TestRunJSONFailsAfterExactlyTwoAttempts(t *testing.T) {
	for name, gen := range map[string]*fakeGenerator{
		"unparsable": {responses: []string{"not-json", "still not json"}},
		"empty":      {responses: []string{"", "   "}},
		"errors":     {errs: []error{errors.New("status code: 500"), context.DeadlineExceeded}},
	} {
		t.Run(name, func(t *testing.T) {
			exec := NewExecutor(gen, DefaultRetryPolicy(), nil, nil)
			_, m, err := RunJSON[payload](context.Background(), exec, "extract", Request{Prompt: "p"}, nil)
			if !errors.Is(err, apperr.ErrGenerationFailed) {
				t.Fatalf("expected generation failure, got %v", err)
			}
			if gen.calls != 2 || m.Attempts != 2 {
				t.Fatalf("calls=%d attempts=%d, want 2", gen.calls, m.Attempts)
			}
		})
	}
}

func TestRunJSONRetriesOnceThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"{broken", "```json\n{\"name\":\"ok\"}\n```"}}
	audit := &MemorySink{}
	exec := NewExecutor(gen, DefaultRetryPolicy(), audit, nil)
	out, m, err := RunJSON[payload](context.Background(), exec, "extract", Request{Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("RunJSON: %v", err)
	}
	if out.Name != "ok" || m.Attempts != 2 {
		t.Fatalf("unexpected result %+v metrics %+v", out, m)
	}
	entries := audit.Entries()
	if len(entries) != 2 || entries[0].Err == "" || entries[1].Cleaned != `{"name":"ok"}` {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
}

func TestRunJSONValidityPredicate(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"name":""}`, `{"name":"x"}`}}
	exec := NewExecutor(gen, DefaultRetryPolicy(), nil, nil)
	out, _, err := RunJSON(context.Background(), exec, "s", Request{}, func(p payload) error {
		if p.Name == "" {
			return errors.New("name required")
		}
		return nil
	})
	if err != nil || out.Name != "x" {
		t.Fatalf("got %+v err=%v", out, err)
	}
}

func TestRunTextRetriesEmpty(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"", "  narrative  "}}
	exec := NewExecutor(gen, DefaultRetryPolicy(), nil, nil)
	out, m, err := RunText(context.Background(), exec, "freeform", Request{})
	if err != nil || out != "narrative" || m.Attempts != 2 {
		t.Fatalf("got %q attempts=%d err=%v", out, m.Attempts, err)
	}
}

func TestDecodeJSONMergesFencedBlocks(t *testing.T) {
	raw := "Here is the table:\n```json\n{\"items\":[1,2]}\n```\nand the rest:\n```json\n{\"items\":[3],\"name\":\"n\"}\n```"
	var p payload
	if err := DecodeJSON(raw, &p); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(p.Items) != 3 || p.Items[2] != 3 || p.Name != "n" {
		t.Fatalf("unexpected merge: %+v", p)
	}
}

func TestJSONBlocksWithoutFences(t *testing.T) {
	blocks := JSONBlocks("Sure! {\"name\":\"a\"} hope that helps")
	if len(blocks) != 1 || blocks[0] != `{"name":"a"}` {
		t.Fatalf("unexpected blocks: %q", blocks)
	}
	if JSONBlocks("   ") != nil {
		t.Fatal("blank input has no blocks")
	}
}

func TestClassifyTransportError(t *testing.T) {
	cases := map[string]failureClass{
		"status code: 503":                         failureUnavailable,
		"status code: 529 overloaded":              failureUnavailable,
		"status code: 429":                         failureRateLimit,
		"status code: 400 bad request":             failureClient,
		"failed after 5 retries waiting 4 seconds": failureServer,
	}
	for msg, want := range cases {
		if got := classifyTransportError(errors.New(msg)); got != want {
			t.Fatalf("classify(%q) = %v, want %v", msg, got, want)
		}
	}
	if classifyTransportError(context.DeadlineExceeded) != failureTimeout {
		t.Fatal("deadline should classify as timeout")
	}
}

type mockMessager struct {
	response *anthropic.Message
	err      error
}

func (m *mockMessager) New(context.Context, anthropic.MessageNewParams, ...option.RequestOption) (*anthropic.Message, error) {
	return m.response, m.err
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func TestAnthropicGeneratorUnavailableIsSoftFailure(t *testing.T) {
	defer withMockClient(&mockMessager{err: errors.New("status code: 503 service unavailable")})()
	gen, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("NewAnthropicGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil || out != "" {
		t.Fatalf("expected soft failure, got %q err=%v", out, err)
	}
}

func TestAnthropicGeneratorConcatenatesText(t *testing.T) {
	defer withMockClient(&mockMessager{response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "{\"a\":"},
		{Type: "text", Text: "1}"},
	}}})()
	gen, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("NewAnthropicGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), Request{System: "s", Prompt: "p"})
	if err != nil || out != `{"a":1}` {
		t.Fatalf("got %q err=%v", out, err)
	}
}

func TestNewAnthropicGeneratorRequiresKey(t *testing.T) {
	if _, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "  "}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}
