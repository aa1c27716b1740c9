// Package strategy dockets analyzable rejections and drafts amendments and
// freeform responses for them.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/llm"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/validator"
)

type Engine struct {
	store     store.API
	validator *validator.Validator
	exec      *llm.Executor
	log       *zap.Logger
	now       func() time.Time
}

func NewEngine(s store.API, v *validator.Validator, exec *llm.Executor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, validator: v, exec: exec, log: log, now: time.Now}
}

// CreateDocket accepts an analyzable rejection for amendment analysis. It
// succeeds once per rejection.
func (e *Engine) CreateDocket(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*oa.Docket, error) {
	m, rej, err := e.validator.Rejection(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}
	if !rej.Analyzable || rej.Basis() == oa.BasisNone {
		return nil, apperr.ErrNotAnalyzable.WithMessage("rejection %s (%s) is not eligible for amendment analysis", rej.ID, rej.Type)
	}
	d := &oa.Docket{
		RejectionID:    rej.ID,
		ApplicationID:  m.Application.ID,
		ClaimsRejected: append([]int(nil), rej.ClaimsRejected...),
		PriorArt:       append([]oa.PriorArtReference(nil), rej.PriorArt...),
		Basis:          rej.Basis(),
		CreatedAt:      e.now().UTC(),
	}
	if err := e.store.CreateDocket(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.ErrDocketExists.WithMessage("docket already exists for rejection %s", rej.ID)
		}
		return nil, fmt.Errorf("create docket: %w", err)
	}
	e.log.Info("docket_created", zap.String("application_id", appID), zap.String("rejection_id", rej.ID.String()), zap.String("basis", string(d.Basis)))
	return d, nil
}

// Run drafts an amendment with strategy kind and overwrites the stored result
// for that kind. Running a kind other than the finalized one marks the
// finalized choice stale.
func (e *Engine) Run(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.StrategyResult, error) {
	if _, ok := templates[kind]; !ok {
		return nil, apperr.Validation("unknown strategy %q", kind)
	}
	ctx, span := otel.Tracer("strategy").Start(ctx, "strategy.Run")
	defer span.End()
	span.SetAttributes(attribute.String("strategy", string(kind)), attribute.String("rejection_id", rejectionID.String()))

	a, err := e.validator.Analysis(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}

	req := llm.Request{System: systemPrompt, Prompt: buildPrompt(kind, a)}
	out, m, err := llm.RunJSON(ctx, e.exec, "strategy_"+string(kind), req, validOutput)
	span.SetAttributes(attribute.Int("attempts", m.Attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "strategy failed")
		return nil, apperr.ErrGenerationFailed.WithMessage("failed to generate amendment, please try again").Wrap(err)
	}

	res := &oa.StrategyResult{
		RejectionID:    rejectionID,
		ApplicationID:  appID,
		Kind:           kind,
		StrategyOutput: out,
	}
	if err := e.store.UpsertStrategyResult(ctx, res); err != nil {
		return nil, fmt.Errorf("save strategy result: %w", err)
	}

	d := a.Docket
	if d.FinalizedStrategy != "" && d.FinalizedStrategy != kind && d.ShowFinalizedType {
		if err := e.store.SetDocketFinalization(ctx, rejectionID, "", false); err != nil {
			return nil, fmt.Errorf("mark finalization stale: %w", err)
		}
		e.log.Info("finalization_stale", zap.String("rejection_id", rejectionID.String()),
			zap.String("finalized", string(d.FinalizedStrategy)), zap.String("ran", string(kind)))
	}
	e.log.Info("strategy_generated", zap.String("application_id", appID), zap.String("rejection_id", rejectionID.String()),
		zap.String("strategy", string(kind)), zap.Int("rows", len(out.ComparisonTable)), zap.Int("attempts", m.Attempts))
	return res, nil
}

func validOutput(o oa.StrategyOutput) error {
	if len(o.ComparisonTable) == 0 && o.AmendedClaim.Empty() && strings.TrimSpace(o.AmendmentStrategy) == "" {
		return errors.New("strategy output is empty")
	}
	return nil
}

// RespondOther drafts the freeform response for a rejection that is not
// answered with a structured amendment.
func (e *Engine) RespondOther(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*oa.OtherRejectionResponse, error) {
	ctx, span := otel.Tracer("strategy").Start(ctx, "strategy.RespondOther")
	defer span.End()

	m, rej, err := e.freeformTarget(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}
	req := llm.Request{System: freeformSystemPrompt, Prompt: buildFreeformPrompt(rej, m.Documents)}
	text, metrics, err := llm.RunText(ctx, e.exec, "respond_other", req)
	span.SetAttributes(attribute.Int("attempts", metrics.Attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "freeform response failed")
		return nil, apperr.ErrGenerationFailed.WithMessage("failed to generate response, please try again").Wrap(err)
	}
	return e.saveOther(ctx, appID, rejectionID, text)
}

// SaveOtherResponse stores an edited freeform response as a draft.
func (e *Engine) SaveOtherResponse(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID, text string) (*oa.OtherRejectionResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("response text is required")
	}
	if _, _, err := e.freeformTarget(ctx, ownerID, appID, rejectionID); err != nil {
		return nil, err
	}
	return e.saveOther(ctx, appID, rejectionID, text)
}

func (e *Engine) freeformTarget(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*validator.Matter, oa.Rejection, error) {
	m, rej, err := e.validator.Rejection(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, oa.Rejection{}, err
	}
	if rej.Analyzable {
		return nil, oa.Rejection{}, apperr.ErrAnalyzable.WithMessage("rejection %s is answered with a structured amendment", rej.ID)
	}
	return m, rej, nil
}

func (e *Engine) saveOther(ctx context.Context, appID string, rejectionID oa.RejectionID, text string) (*oa.OtherRejectionResponse, error) {
	r := &oa.OtherRejectionResponse{
		RejectionID:   rejectionID,
		ApplicationID: appID,
		Response:      text,
		Status:        oa.StatusDraft,
	}
	if err := e.store.UpsertOtherResponse(ctx, r); err != nil {
		if errors.Is(err, store.ErrFinalized) {
			return nil, apperr.ErrAlreadyFinalized.WithMessage("response for rejection %s is already finalized", rejectionID)
		}
		return nil, fmt.Errorf("save other response: %w", err)
	}
	e.log.Info("other_response_saved", zap.String("application_id", appID), zap.String("rejection_id", rejectionID.String()), zap.Int("chars", len(text)))
	return r, nil
}
