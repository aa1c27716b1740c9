package finalize

import (
	"context"
	"errors"
	"fmt"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
)

type Track string

const (
	TrackAmendment Track = "amendment"
	TrackResponse  Track = "response"
)

type RejectionReadiness struct {
	RejectionID oa.RejectionID `json:"rejectionId"`
	Type        string         `json:"rejectionType"`
	Track       Track          `json:"track"`
	Satisfied   bool           `json:"satisfied"`
	Missing     string         `json:"missing,omitempty"`
	// Stale is set when a different strategy was run after finalization.
	Stale bool `json:"stale,omitempty"`
}

type MissingItem struct {
	RejectionID oa.RejectionID `json:"rejectionId"`
	Message     string         `json:"message"`
}

type Preview struct {
	ApplicationID string               `json:"applicationId"`
	Ready         bool                 `json:"ready"`
	Rejections    []RejectionReadiness `json:"rejections"`
	MissingItems  []MissingItem        `json:"missingItems"`
}

// Preview reports, per rejection in stored order, whether its track has
// reached finalized. It writes nothing.
func (c *Controller) Preview(ctx context.Context, ownerID, appID string) (*Preview, error) {
	m, err := c.validator.Matter(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	p := &Preview{ApplicationID: appID, Ready: true, Rejections: []RejectionReadiness{}, MissingItems: []MissingItem{}}
	for _, rej := range m.Application.Rejections {
		rr, err := c.readiness(ctx, rej)
		if err != nil {
			return nil, err
		}
		p.Rejections = append(p.Rejections, rr)
		if !rr.Satisfied {
			p.Ready = false
			p.MissingItems = append(p.MissingItems, MissingItem{RejectionID: rej.ID, Message: rr.Missing})
		}
	}
	return p, nil
}

func (c *Controller) readiness(ctx context.Context, rej oa.Rejection) (RejectionReadiness, error) {
	rr := RejectionReadiness{RejectionID: rej.ID, Type: rej.Type, Track: TrackResponse}
	if rej.Analyzable {
		rr.Track = TrackAmendment
		f, err := c.store.GetFinalizedAmendment(ctx, rej.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rr.Missing = fmt.Sprintf("%s rejection of claims %v has no amendment", rej.Type, rej.ClaimsRejected)
		case err != nil:
			return rr, fmt.Errorf("load finalized amendment: %w", err)
		case f.Status != oa.StatusFinalized:
			rr.Missing = fmt.Sprintf("%s rejection of claims %v has an amendment that is not finalized", rej.Type, rej.ClaimsRejected)
		default:
			rr.Satisfied = true
			if d, err := c.store.GetDocket(ctx, rej.ID); err == nil {
				rr.Stale = !d.ShowFinalizedType
			}
		}
		return rr, nil
	}
	r, err := c.store.GetOtherResponse(ctx, rej.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rr.Missing = fmt.Sprintf("%s rejection of claims %v has no response", rej.Type, rej.ClaimsRejected)
	case err != nil:
		return rr, fmt.Errorf("load other response: %w", err)
	case r.Status != oa.StatusFinalized:
		rr.Missing = fmt.Sprintf("%s rejection of claims %v has a response that is not finalized", rej.Type, rej.ClaimsRejected)
	default:
		rr.Satisfied = true
	}
	return rr, nil
}
