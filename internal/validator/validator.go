// Package validator checks that every record a rejection analysis depends on
// is present before any generation call is made.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/claims"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
)

type Validator struct {
	store store.API
}

func New(s store.API) *Validator {
	return &Validator{store: s}
}

// Matter is an owned application together with its documents record.
type Matter struct {
	Application *oa.Application
	Documents   *oa.ApplicationDocuments
}

type ClaimText struct {
	Number int
	Text   string
}

type PriorArtInput struct {
	Reference   oa.PriorArtReference
	Description string
}

// Analysis holds everything a strategy needs for one docketed rejection.
type Analysis struct {
	Matter
	Rejection oa.Rejection
	Docket    *oa.Docket
	// Claims are the rejected independent claims whose text was located.
	Claims     []ClaimText
	Dependents []ClaimText
	PriorArt   []PriorArtInput
}

// Application loads appID and checks that ownerID owns it. A matter owned by
// someone else is reported as not found.
func (v *Validator) Application(ctx context.Context, ownerID, appID string) (*oa.Application, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, apperr.Validation("application id is required")
	}
	app, err := v.store.GetApplication(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("application %s not found", appID)
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app.OwnerID != ownerID {
		return nil, apperr.NotFound("application %s not found", appID)
	}
	return app, nil
}

// Matter checks ownership, the three readiness flags and the documents
// record.
func (v *Validator) Matter(ctx context.Context, ownerID, appID string) (*Matter, error) {
	app, err := v.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if !app.Ready() {
		return nil, apperr.ErrDocumentsNotReady.WithMessage("application %s is missing %s", appID, strings.Join(missingFlags(app), ", "))
	}
	docs, err := v.store.GetDocuments(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrDocumentsMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return &Matter{Application: app, Documents: docs}, nil
}

// Rejection checks the matter and that rejectionID belongs to it.
func (v *Validator) Rejection(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*Matter, oa.Rejection, error) {
	if rejectionID == "" {
		return nil, oa.Rejection{}, apperr.Validation("rejection id is required")
	}
	m, err := v.Matter(ctx, ownerID, appID)
	if err != nil {
		return nil, oa.Rejection{}, err
	}
	r, ok := m.Application.Rejection(rejectionID)
	if !ok {
		return nil, oa.Rejection{}, apperr.NotFound("rejection %s not found", rejectionID)
	}
	return m, *r, nil
}

// Analysis runs every check required before a strategy may run against
// rejectionID, in order, stopping at the first failure.
func (v *Validator) Analysis(ctx context.Context, ownerID, appID string, rejectionID oa.RejectionID) (*Analysis, error) {
	m, rej, err := v.Rejection(ctx, ownerID, appID, rejectionID)
	if err != nil {
		return nil, err
	}
	docket, err := v.store.GetDocket(ctx, rejectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotDocketed.WithMessage("rejection %s has not been docketed", rejectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load docket: %w", err)
	}

	a := &Analysis{Matter: *m, Rejection: rej, Docket: docket}
	if a.PriorArt, err = priorArtInputs(docket, m.Documents); err != nil {
		return nil, err
	}
	if err := a.locateClaims(); err != nil {
		return nil, err
	}
	return a, nil
}

func priorArtInputs(d *oa.Docket, docs *oa.ApplicationDocuments) ([]PriorArtInput, error) {
	refs := d.PriorArt
	switch d.Basis {
	case oa.Basis102:
		if len(refs) != 1 {
			return nil, apperr.ErrPriorArtCount.WithMessage("a 102 rejection must cite exactly one prior-art reference, found %d", len(refs))
		}
	case oa.Basis103:
		if len(refs) == 0 {
			return nil, apperr.ErrPriorArtMissing.WithMessage("no prior-art references cited")
		}
	default:
		return nil, apperr.ErrNotAnalyzable
	}
	out := make([]PriorArtInput, 0, len(refs))
	for _, ref := range refs {
		desc, ok := docs.PriorArtDescription(ref.ReferenceID)
		if !ok {
			return nil, apperr.ErrPriorArtMissing.WithMessage("prior-art description not found for %s", ref.Citation)
		}
		out = append(out, PriorArtInput{Reference: ref, Description: desc})
	}
	return out, nil
}

func (a *Analysis) locateClaims() error {
	tree := a.Documents.ClaimTree
	listing := a.Documents.ClaimText
	split := claims.Split(listing)
	for _, n := range oa.RejectedIndependentClaims(a.Docket.ClaimsRejected, tree) {
		body, ok := claims.Body(n, tree, listing)
		if !ok {
			continue
		}
		a.Claims = append(a.Claims, ClaimText{Number: n, Text: body})
		for _, dep := range oa.DependentsOf(n, tree) {
			if text := split[dep]; text != "" {
				a.Dependents = append(a.Dependents, ClaimText{Number: dep, Text: text})
			}
		}
	}
	if len(a.Claims) == 0 {
		return apperr.ErrClaimNotFound.WithMessage("text not found for rejected claims %v", a.Docket.ClaimsRejected)
	}
	return nil
}

func missingFlags(app *oa.Application) []string {
	var out []string
	if !app.ClaimsIngested {
		out = append(out, "claims")
	}
	if !app.DescriptionIngested {
		out = append(out, "description")
	}
	if !app.PriorArtIngested {
		out = append(out, "prior art")
	}
	return out
}
