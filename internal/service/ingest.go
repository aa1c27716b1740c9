package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/search"
)

// IngestOfficeAction extracts rejections from text and appends them to the
// matter.
func (s *Service) IngestOfficeAction(ctx context.Context, ownerID, appID, text string) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("office action text is required")
	}
	return s.ingestOfficeAction(ctx, app, text)
}

// IngestOfficeActionDocument converts an uploaded office action to text and
// ingests it.
func (s *Service) IngestOfficeActionDocument(ctx context.Context, ownerID, appID string, blob []byte) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, apperr.Validation("office action document is required")
	}
	res, err := s.converter.Bytes(ctx, blob)
	if err != nil {
		return nil, apperr.Validation("could not read office action document: %v", err)
	}
	s.log.Info("office_action_converted", zap.String("application_id", appID), zap.String("method", res.Method), zap.Bool("truncated", res.Truncated))
	return s.ingestOfficeAction(ctx, app, res.Text)
}

// ImportOfficeAction pulls the newest rejection from the application's file
// history and ingests it.
func (s *Service) ImportOfficeAction(ctx context.Context, ownerID, appID string) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if s.search == nil {
		return nil, apperr.Validation("office action search is not configured")
	}
	history, err := s.search.Documents(ctx, app.ApplicationNumber)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to search office actions")
	}
	latest, err := search.LatestOfficeAction(history)
	if err != nil {
		return nil, apperr.NotFound("no office action found for application %s", app.ApplicationNumber)
	}
	blob, err := s.search.Download(ctx, latest)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to download office action")
	}
	res, err := s.converter.Bytes(ctx, blob)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to read office action document")
	}
	app.FirstAction = search.IsFirstAction(history)
	s.log.Info("office_action_imported",
		zap.String("application_id", appID),
		zap.String("document_code", latest.Code),
		zap.Bool("first_action", app.FirstAction),
	)
	return s.ingestOfficeAction(ctx, app, res.Text)
}

func (s *Service) ingestOfficeAction(ctx context.Context, app *oa.Application, text string) (*oa.Application, error) {
	ext, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	app.Rejections = append(app.Rejections, ext.Rejections...)
	app.ClaimStatuses = append(app.ClaimStatuses, ext.ClaimStatuses...)
	app.RecomputeAnalyzable(docs.ClaimTree)
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	s.log.Info("office_action_ingested", zap.String("application_id", app.ID), zap.Int("rejections", len(ext.Rejections)))
	return app, nil
}

// IngestClaims resolves the claim tree for listing and stores both.
func (s *Service) IngestClaims(ctx context.Context, ownerID, appID, listing string) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(listing) == "" {
		return nil, apperr.Validation("claim text is required")
	}
	tree, err := s.resolver.Resolve(ctx, listing)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents(ctx, appID)
	if err != nil {
		return nil, err
	}
	docs.ClaimText = listing
	docs.ClaimTree = tree
	if err := s.store.SaveDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("save claims: %w", err)
	}
	app.ClaimsIngested = true
	app.RecomputeAnalyzable(tree)
	s.probeClaimCount(ctx, app, tree)
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	s.log.Info("claims_ingested", zap.String("application_id", appID), zap.Int("independent_claims", len(tree)))
	return app, nil
}

// probeClaimCount records the published claim count when a probe is wired.
// Failures and mismatches are logged only.
func (s *Service) probeClaimCount(ctx context.Context, app *oa.Application, tree []oa.ClaimGroup) {
	if s.probe == nil || strings.TrimSpace(app.PublicationNumber) == "" {
		return
	}
	n, err := s.probe.Count(ctx, app.PublicationNumber)
	if err != nil {
		s.log.Warn("claim_probe_failed", zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	app.ClaimCount = n
	resolved := 0
	for _, g := range tree {
		resolved += 1 + len(g.DependentClaims)
	}
	if n != resolved {
		s.log.Warn("claim_count_mismatch",
			zap.String("application_id", app.ID),
			zap.Int("published", n),
			zap.Int("resolved", resolved),
		)
	}
}

func (s *Service) IngestDescription(ctx context.Context, ownerID, appID, text string) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("description text is required")
	}
	docs, err := s.documents(ctx, appID)
	if err != nil {
		return nil, err
	}
	docs.DescriptionText = text
	if err := s.store.SaveDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("save description: %w", err)
	}
	app.DescriptionIngested = true
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	return app, nil
}

// IngestPriorArt fetches a description for every distinct reference cited by
// the matter's rejections.
func (s *Service) IngestPriorArt(ctx context.Context, ownerID, appID string) (*oa.Application, error) {
	app, err := s.validator.Application(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	refs := oa.CitedReferences(app.Rejections)
	fetched, err := s.priorArt.FetchAll(ctx, refs)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to fetch prior art")
	}
	docs, err := s.documents(ctx, appID)
	if err != nil {
		return nil, err
	}
	docs.PriorArt = mergePriorArt(docs.PriorArt, fetched)
	if err := s.store.SaveDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("save prior art: %w", err)
	}
	app.PriorArtIngested = true
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	s.log.Info("prior_art_ingested", zap.String("application_id", appID), zap.Int("references", len(fetched)))
	return app, nil
}

// mergePriorArt replaces entries of existing by reference id and appends the
// rest.
func mergePriorArt(existing, fetched []oa.PriorArtDocument) []oa.PriorArtDocument {
	out := append([]oa.PriorArtDocument(nil), existing...)
	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.ReferenceID] = i
	}
	for _, d := range fetched {
		if i, ok := index[d.ReferenceID]; ok {
			out[i] = d
			continue
		}
		index[d.ReferenceID] = len(out)
		out = append(out, d)
	}
	return out
}
