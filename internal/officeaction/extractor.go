package officeaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/llm"
)

const MaxOfficeActionChars = 400000

const extractionSystemPrompt = "You read USPTO office actions and return strict JSON describing every rejection and every claim status. Do not invent facts."

const extractionSchemaPrompt = `Required JSON schema:
{
  "rejections": [
    {
      "rejectionType": "string, statutory basis as written, e.g. 35 U.S.C. 103",
      "claimsRejected": [integer claim numbers],
      "priorArtReferences": ["citation strings, e.g. US 7250547 B2"],
      "examinerReasoning": "verbatim examiner reasoning"
    }
  ],
  "claimStatus": [
    {
      "claimNumbers": "range as written, e.g. 1-5, 7",
      "status": "Pending | Rejected | Withdrawn | Canceled | Allowed | Objected | Indicated Allowable | Previously Presented | Currently Amended | New",
      "type": "statutory or regulatory basis, or empty"
    }
  ]
}`

type Extraction struct {
	Rejections    []Rejection   `json:"rejections"`
	ClaimStatuses []ClaimStatus `json:"claimStatus"`
}

type extractionWire struct {
	Rejections []struct {
		RejectionType      string   `json:"rejectionType"`
		ClaimsRejected     []int    `json:"claimsRejected"`
		PriorArtReferences []string `json:"priorArtReferences"`
		ExaminerReasoning  string   `json:"examinerReasoning"`
	} `json:"rejections"`
	ClaimStatus []struct {
		ClaimNumbers string `json:"claimNumbers"`
		Status       string `json:"status"`
		Type         string `json:"type"`
	} `json:"claimStatus"`
}

type Extractor struct {
	exec *llm.Executor
	log  *zap.Logger
}

func NewExtractor(exec *llm.Executor, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{exec: exec, log: log}
}

// Extract turns office-action text into rejection and claim-status records.
// It persists nothing.
func (e *Extractor) Extract(ctx context.Context, text string) (Extraction, error) {
	ctx, span := otel.Tracer("officeaction").Start(ctx, "officeaction.Extract")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{}, apperr.Validation("office action text is required")
	}
	if len(text) > MaxOfficeActionChars {
		text = text[:MaxOfficeActionChars]
		span.SetAttributes(attribute.Bool("input_truncated", true))
	}

	prompt := fmt.Sprintf("Extract every rejection and claim status from the office action below.\n\n%s\n\nOffice action:\n%s", extractionSchemaPrompt, text)
	wire, m, err := llm.RunJSON(ctx, e.exec, "extract_rejections", llm.Request{System: extractionSystemPrompt, Prompt: prompt}, validateExtraction)
	span.SetAttributes(attribute.Int("attempts", m.Attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return Extraction{}, apperr.ErrGenerationFailed.WithMessage("failed to generate rejections, please try again").Wrap(err)
	}

	out := Extraction{
		Rejections:    make([]Rejection, 0, len(wire.Rejections)),
		ClaimStatuses: make([]ClaimStatus, 0, len(wire.ClaimStatus)),
	}
	for _, r := range wire.Rejections {
		rej := Rejection{
			ID:                NewRejectionID(),
			Type:              strings.TrimSpace(r.RejectionType),
			ClaimsRejected:    normalizeClaimNumbers(r.ClaimsRejected),
			ExaminerReasoning: strings.TrimSpace(r.ExaminerReasoning),
		}
		if rej.Type == "" {
			rej.Type = UnknownRejectionType
		}
		for _, c := range r.PriorArtReferences {
			if strings.TrimSpace(c) == "" {
				continue
			}
			rej.PriorArt = append(rej.PriorArt, NewPriorArtReference(c))
		}
		out.Rejections = append(out.Rejections, rej)
	}
	for _, cs := range wire.ClaimStatus {
		status, ok := ParseClaimStatus(cs.Status)
		if !ok {
			e.log.Warn("claim_status_unrecognized", zap.String("status", cs.Status), zap.String("claims", cs.ClaimNumbers))
			status = StatusPending
		}
		out.ClaimStatuses = append(out.ClaimStatuses, ClaimStatus{
			ClaimNumbers: strings.TrimSpace(cs.ClaimNumbers),
			Status:       status,
			Basis:        strings.TrimSpace(cs.Type),
		})
	}
	e.log.Info("rejections_extracted", zap.Int("rejections", len(out.Rejections)), zap.Int("claim_statuses", len(out.ClaimStatuses)), zap.Int("attempts", m.Attempts))
	return out, nil
}

func validateExtraction(w extractionWire) error {
	if w.Rejections == nil && w.ClaimStatus == nil {
		return errors.New("response contained neither rejections nor claimStatus")
	}
	return nil
}
