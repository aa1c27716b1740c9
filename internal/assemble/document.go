// Package assemble builds the response document from finalized records and
// renders it as Markdown or PDF.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/finalize"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/strategy"
)

const Conclusion = "In view of the foregoing amendments and remarks, Applicant respectfully submits that the pending claims are in condition for allowance and requests that the rejections be withdrawn. The Examiner is invited to contact the undersigned if a telephone interview would advance prosecution."

type TitleBlock struct {
	ApplicationNumber string `json:"applicationNumber"`
	PublicationNumber string `json:"publicationNumber"`
	Title             string `json:"title"`
	FilingDate        string `json:"filingDate,omitempty"`
	Date              string `json:"date"`
}

type SummaryItem struct {
	RejectionID oa.RejectionID `json:"rejectionId"`
	Type        string         `json:"rejectionType"`
	Claims      []int          `json:"claims"`
}

type Amendment struct {
	Kind            oa.StrategyKind        `json:"kind"`
	Heading         string                 `json:"heading"`
	PriorArt        []oa.PriorArtReference `json:"priorArt"`
	ComparisonTable []oa.ComparisonRow     `json:"comparisonTable,omitempty"`
	AmendedClaim    *oa.AmendedClaim       `json:"amendedClaim,omitempty"`
	Strategy        string                 `json:"amendmentStrategy,omitempty"`
}

type Section struct {
	RejectionID oa.RejectionID `json:"rejectionId"`
	Type        string         `json:"rejectionType"`
	Claims      []int          `json:"claims"`
	// Citations is nil for rejections answered with a freeform response.
	Citations []oa.PriorArtReference `json:"citations,omitempty"`
	Amendment *Amendment             `json:"amendment,omitempty"`
	Response  string                 `json:"response,omitempty"`
}

type Document struct {
	ApplicationID string        `json:"applicationId"`
	TitleBlock    TitleBlock    `json:"titleBlock"`
	Summary       []SummaryItem `json:"summary"`
	Sections      []Section     `json:"sections"`
	Conclusion    string        `json:"conclusion"`
}

type Assembler struct {
	store    store.API
	finalize *finalize.Controller
	log      *zap.Logger
	now      func() time.Time
}

func NewAssembler(s store.API, f *finalize.Controller, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{store: s, finalize: f, log: log, now: time.Now}
}

// Build reads every finalized record for appID and composes the document in
// the application's rejection order. It writes nothing.
func (a *Assembler) Build(ctx context.Context, ownerID, appID string) (*Document, error) {
	ctx, span := otel.Tracer("assemble").Start(ctx, "assemble.Build")
	defer span.End()

	p, err := a.finalize.Preview(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if !p.Ready {
		return nil, apperr.ErrNotReady.WithMessage("%d rejection(s) are not finalized", len(p.MissingItems))
	}
	app, err := a.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}

	doc := &Document{
		ApplicationID: app.ID,
		TitleBlock: TitleBlock{
			ApplicationNumber: app.ApplicationNumber,
			PublicationNumber: app.PublicationNumber,
			Title:             app.Title,
			FilingDate:        app.FilingDate,
			Date:              a.now().Format("January 2, 2006"),
		},
		Summary:    make([]SummaryItem, 0, len(app.Rejections)),
		Sections:   make([]Section, 0, len(app.Rejections)),
		Conclusion: Conclusion,
	}
	for _, rej := range app.Rejections {
		doc.Summary = append(doc.Summary, SummaryItem{RejectionID: rej.ID, Type: rej.Type, Claims: rej.ClaimsRejected})
		sec, err := a.section(ctx, rej)
		if err != nil {
			a.log.Error("assembly_integrity_violation", zap.String("application_id", appID), zap.String("rejection_id", rej.ID.String()), zap.Error(err))
			return nil, err
		}
		doc.Sections = append(doc.Sections, sec)
	}
	span.SetAttributes(attribute.Int("sections", len(doc.Sections)))
	a.log.Info("document_assembled", zap.String("application_id", appID), zap.Int("sections", len(doc.Sections)))
	return doc, nil
}

func (a *Assembler) section(ctx context.Context, rej oa.Rejection) (Section, error) {
	sec := Section{RejectionID: rej.ID, Type: rej.Type, Claims: rej.ClaimsRejected}
	if !rej.Analyzable {
		r, err := a.store.GetOtherResponse(ctx, rej.ID)
		if err != nil || r.Status != oa.StatusFinalized {
			return sec, missingRecord(rej.ID, "response", err)
		}
		sec.Response = r.Response
		return sec, nil
	}

	f, err := a.store.GetFinalizedAmendment(ctx, rej.ID)
	if err != nil || f.Status != oa.StatusFinalized {
		return sec, missingRecord(rej.ID, "amendment", err)
	}
	sec.Citations = rej.PriorArt
	am := &Amendment{
		Kind:            f.Kind,
		Heading:         strategy.Heading(f.Kind),
		PriorArt:        rej.PriorArt,
		ComparisonTable: f.ComparisonTable,
		Strategy:        f.AmendmentStrategy,
	}
	if d, err := a.store.GetDocket(ctx, rej.ID); err == nil {
		am.PriorArt = d.PriorArt
	}
	if !f.AmendedClaim.Empty() {
		claim := f.AmendedClaim
		am.AmendedClaim = &claim
	}
	sec.Amendment = am
	return sec, nil
}

func missingRecord(id oa.RejectionID, what string, cause error) error {
	if cause != nil && !errors.Is(cause, store.ErrNotFound) {
		return fmt.Errorf("load %s for rejection %s: %w", what, id, cause)
	}
	return apperr.ErrRecordMissing.WithMessage("finalized %s missing for rejection %s", what, id)
}
