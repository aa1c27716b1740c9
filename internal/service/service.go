// Package service creates matters and ingests the documents the response
// pipeline works from.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/doctext"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/search"
	"github.com/joelkehle/office-action-response/internal/store"
	"github.com/joelkehle/office-action-response/internal/validator"
)

const (
	DefaultMaxIDAttempts = 10
	idLength             = 10
)

type OfficeActionExtractor interface {
	Extract(ctx context.Context, text string) (oa.Extraction, error)
}

type ClaimResolver interface {
	Resolve(ctx context.Context, listing string) ([]oa.ClaimGroup, error)
}

type PriorArtFetcher interface {
	FetchAll(ctx context.Context, refs []oa.PriorArtReference) ([]oa.PriorArtDocument, error)
}

type OfficeActionSearcher interface {
	Documents(ctx context.Context, applicationNumber string) ([]search.Document, error)
	Download(ctx context.Context, d search.Document) ([]byte, error)
}

type TextConverter interface {
	Bytes(ctx context.Context, blob []byte) (doctext.Result, error)
}

type ClaimProber interface {
	Count(ctx context.Context, publicationNumber string) (int, error)
}

// Deps wires the service. Search and Probe are optional.
type Deps struct {
	Store         store.API
	Extractor     OfficeActionExtractor
	Resolver      ClaimResolver
	PriorArt      PriorArtFetcher
	Search        OfficeActionSearcher
	Converter     TextConverter
	Probe         ClaimProber
	Log           *zap.Logger
	NewID         func() string
	MaxIDAttempts int
}

type Service struct {
	store         store.API
	validator     *validator.Validator
	extractor     OfficeActionExtractor
	resolver      ClaimResolver
	priorArt      PriorArtFetcher
	search        OfficeActionSearcher
	converter     TextConverter
	probe         ClaimProber
	log           *zap.Logger
	newID         func() string
	maxIDAttempts int
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.NewID == nil {
		d.NewID = NewShortID
	}
	if d.MaxIDAttempts <= 0 {
		d.MaxIDAttempts = DefaultMaxIDAttempts
	}
	if d.Converter == nil {
		d.Converter = doctext.New()
	}
	return &Service{
		store:         d.Store,
		validator:     validator.New(d.Store),
		extractor:     d.Extractor,
		resolver:      d.Resolver,
		priorArt:      d.PriorArt,
		search:        d.Search,
		converter:     d.Converter,
		probe:         d.Probe,
		log:           d.Log,
		newID:         d.NewID,
		maxIDAttempts: d.MaxIDAttempts,
	}
}

// NewShortID returns 10 lowercase hex characters.
func NewShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

type ApplicationMeta struct {
	ApplicationNumber string `json:"applicationNumber"`
	PublicationNumber string `json:"publicationNumber"`
	Title             string `json:"title"`
	FilingDate        string `json:"filingDate"`
}

// CreateApplication assigns a fresh id, retrying on collision up to the
// configured attempt cap.
func (s *Service) CreateApplication(ctx context.Context, ownerID string, meta ApplicationMeta) (*oa.Application, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Unauthorized("missing identity")
	}
	if strings.TrimSpace(meta.ApplicationNumber) == "" {
		return nil, apperr.Validation("applicationNumber is required")
	}
	for attempt := 1; attempt <= s.maxIDAttempts; attempt++ {
		id := s.newID()
		exists, err := s.store.ApplicationExists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check application id: %w", err)
		}
		if exists {
			s.log.Warn("application_id_collision", zap.String("application_id", id), zap.Int("attempt", attempt))
			continue
		}
		app := &oa.Application{
			ID:                id,
			ApplicationNumber: strings.TrimSpace(meta.ApplicationNumber),
			PublicationNumber: strings.TrimSpace(meta.PublicationNumber),
			OwnerID:           ownerID,
			Title:             strings.TrimSpace(meta.Title),
			FilingDate:        strings.TrimSpace(meta.FilingDate),
		}
		err = s.store.InsertApplication(ctx, app)
		if errors.Is(err, store.ErrDuplicate) {
			s.log.Warn("application_id_collision", zap.String("application_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert application: %w", err)
		}
		s.log.Info("application_created", zap.String("application_id", id), zap.Int("attempts", attempt))
		return app, nil
	}
	return nil, apperr.ErrIDExhausted.WithMessage("could not generate a unique application id after %d attempts", s.maxIDAttempts)
}

func (s *Service) GetApplication(ctx context.Context, ownerID, appID string) (*oa.Application, error) {
	return s.validator.Application(ctx, ownerID, appID)
}

func (s *Service) ListApplications(ctx context.Context, ownerID string) ([]oa.Application, error) {
	apps, err := s.store.ListApplications(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// documents returns the stored record or an empty one for appID.
func (s *Service) documents(ctx context.Context, appID string) (*oa.ApplicationDocuments, error) {
	docs, err := s.store.GetDocuments(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return &oa.ApplicationDocuments{ApplicationID: appID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}
