package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/assemble"
	"github.com/joelkehle/office-action-response/internal/claims"
	"github.com/joelkehle/office-action-response/internal/config"
	"github.com/joelkehle/office-action-response/internal/doctext"
	"github.com/joelkehle/office-action-response/internal/finalize"
	"github.com/joelkehle/office-action-response/internal/httpapi"
	"github.com/joelkehle/office-action-response/internal/llm"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/priorart"
	"github.com/joelkehle/office-action-response/internal/probe"
	"github.com/joelkehle/office-action-response/internal/search"
	"github.com/joelkehle/office-action-response/internal/service"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/strategy"
	"github.com/joelkehle/office-action-response/internal/validator"
)

func newExecutor(cfg *config.Config, log *zap.Logger) (*llm.Executor, error) {
	gen, err := llm.NewAnthropicGenerator(llm.AnthropicConfig{
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	}, log)
	if err != nil {
		return nil, err
	}
	var audit llm.AuditSink = llm.NopSink{}
	if cfg.Development() {
		sink, err := llm.NewFileSink(cfg.Audit.Dir)
		if err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
		audit = sink
	}
	policy := llm.DefaultRetryPolicy()
	policy.Delay = cfg.LLM.RetryDelay
	return llm.NewExecutor(gen, policy, audit, log), nil
}

type server struct {
	handler http.Handler
	store   *store.SQLiteStore
}

func openStore(path string) (*store.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return store.Open(path)
}

// buildServer wires every component behind the HTTP surface.
func buildServer(cfg *config.Config, log *zap.Logger) (*server, error) {
	exec, err := newExecutor(cfg, log)
	if err != nil {
		return nil, err
	}
	s, err := openStore(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	var searcher service.OfficeActionSearcher
	if cfg.Search.Enabled() {
		c, err := search.NewClient(search.Config{BaseURL: cfg.Search.BaseURL, APIKey: cfg.Search.APIKey}, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		searcher = c
	}
	var prober service.ClaimProber
	if cfg.Probe.Enabled() {
		prober = probe.NewClaimCounter(probe.Config{
			URLTemplate: cfg.Probe.URLTemplate,
			Selector:    cfg.Probe.Selector,
			ChromePath:  cfg.Render.ChromePath,
		}, log)
	}

	v := validator.New(s)
	fc := finalize.NewController(s, v, log)
	svc := service.New(service.Deps{
		Store:         s,
		Extractor:     oa.NewExtractor(exec, log),
		Resolver:      claims.NewResolver(exec, log),
		PriorArt:      priorart.NewFetcher(priorart.Config{BaseURL: cfg.PriorArt.BaseURL, Concurrency: cfg.PriorArt.Concurrency}, log),
		Search:        searcher,
		Converter:     doctext.New(),
		Probe:         prober,
		Log:           log,
		MaxIDAttempts: cfg.IDs.MaxAttempts,
	})
	h := httpapi.NewServer(httpapi.Deps{
		Service:   svc,
		Engine:    strategy.NewEngine(s, v, exec, log),
		Finalize:  fc,
		Assembler: assemble.NewAssembler(s, fc, log),
		PDF:       assemble.NewPDFRenderer(cfg.Render.ChromePath),
		Log:       log,
		DevMode:   cfg.Development(),
	})
	return &server{handler: h, store: s}, nil
}
