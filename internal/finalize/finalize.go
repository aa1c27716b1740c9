// Package finalize promotes drafts to the canonical records used in the
// assembled response, and reports whether a matter is ready to assemble.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/validator"
)

type Controller struct {
	store     store.API
	validator *validator.Validator
	log       *zap.Logger
	now       func() time.Time
}

func NewController(s store.API, v *validator.Validator, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{store: s, validator: v, log: log, now: time.Now}
}

// SaveDraft copies the kind result into the canonical amendment as a draft.
// A finalized amendment is never moved back to draft.
func (c *Controller) SaveDraft(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.FinalizedAmendment, error) {
	res, err := c.selectedResult(ctx, ownerID, appID, rejectionID, kind)
	if err != nil {
		return nil, err
	}
	f := &oa.FinalizedAmendment{
		RejectionID:    rejectionID,
		ApplicationID:  appID,
		Kind:           kind,
		StrategyOutput: res.StrategyOutput,
		Status:         oa.StatusDraft,
	}
	if err := c.store.UpsertFinalizedAmendment(ctx, f); err != nil {
		if errors.Is(err, store.ErrFinalized) {
			return nil, apperr.ErrAlreadyFinalized.WithMessage("amendment for rejection %s is already finalized", rejectionID)
		}
		return nil, fmt.Errorf("save draft amendment: %w", err)
	}
	c.log.Info("amendment_draft_saved", zap.String("rejection_id", rejectionID.String()), zap.String("strategy", string(kind)))
	return f, nil
}

// FinalizeAmendment promotes the kind result to the finalized amendment and
// marks it current on the docket. Finalizing again refreshes the timestamp.
func (c *Controller) FinalizeAmendment(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.FinalizedAmendment, error) {
	res, err := c.selectedResult(ctx, ownerID, appID, rejectionID, kind)
	if err != nil {
		return nil, err
	}
	at := c.now().UTC()
	f := &oa.FinalizedAmendment{
		RejectionID:    rejectionID,
		ApplicationID:  appID,
		Kind:           kind,
		StrategyOutput: res.StrategyOutput,
		Status:         oa.StatusFinalized,
		FinalizedAt:    &at,
	}
	if err := c.store.UpsertFinalizedAmendment(ctx, f); err != nil {
		return nil, fmt.Errorf("finalize amendment: %w", err)
	}
	if err := c.store.SetDocketFinalization(ctx, rejectionID, kind, true); err != nil {
		return nil, fmt.Errorf("record finalization on docket: %w", err)
	}
	c.log.Info("amendment_finalized", zap.String("application_id", appID), zap.String("rejection_id", rejectionID.String()), zap.String("strategy", string(kind)))
	return f, nil
}

func (c *Controller) selectedResult(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.StrategyResult, error) {
	if _, ok := oa.ParseStrategyKind(string(kind)); !ok {
		return nil, apperr.Validation("unknown strategy %q", kind)
	}
	a, err := c.validator.Analysis(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}
	if !a.Rejection.Analyzable {
		return nil, apperr.ErrNotAnalyzable
	}
	res, err := c.store.GetStrategyResult(ctx, rejectionID, kind)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrDraftMissing.WithMessage("no %s result exists for rejection %s", kind, rejectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load strategy result: %w", err)
	}
	return res, nil
}

// FinalizeOtherResponse promotes the freeform draft for a rejection that is
// not answered with an amendment.
func (c *Controller) FinalizeOtherResponse(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*oa.OtherRejectionResponse, error) {
	_, rej, err := c.validator.Rejection(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}
	if rej.Analyzable {
		return nil, apperr.ErrAnalyzable.WithMessage("rejection %s is answered with a structured amendment", rejectionID)
	}
	r, err := c.store.GetOtherResponse(ctx, rejectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrDraftMissing.WithMessage("no response draft exists for rejection %s", rejectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load other response: %w", err)
	}
	at := c.now().UTC()
	r.Status = oa.StatusFinalized
	r.FinalizedAt = &at
	if err := c.store.UpsertOtherResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("finalize other response: %w", err)
	}
	c.log.Info("other_response_finalized", zap.String("application_id", appID), zap.String("rejection_id", rejectionID.String()))
	return r, nil
}
