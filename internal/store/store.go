// Package store persists matters, dockets, strategy results and finalized
// records.
package store

import (
	"context"
	"errors"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrFinalized is returned when a draft write would overwrite a finalized
	// record.
	ErrFinalized = errors.New("store: record is finalized")
)

// API is the persisted entity surface. Application and Docket creation are
// create-once; strategy results are upserted; canonical records only move
// from draft to finalized.
type API interface {
	ApplicationExists(ctx context.Context, id string) (bool, error)
	InsertApplication(ctx context.Context, app *oa.Application) error
	GetApplication(ctx context.Context, id string) (*oa.Application, error)
	ListApplications(ctx context.Context, ownerID string) ([]oa.Application, error)
	// UpdateApplication rewrites mutable fields. Readiness flags are only
	// ever raised.
	UpdateApplication(ctx context.Context, app *oa.Application) error

	GetDocuments(ctx context.Context, applicationID string) (*oa.ApplicationDocuments, error)
	SaveDocuments(ctx context.Context, docs *oa.ApplicationDocuments) error

	CreateDocket(ctx context.Context, d *oa.Docket) error
	GetDocket(ctx context.Context, rejectionID oa.RejectionID) (*oa.Docket, error)
	ListDockets(ctx context.Context, applicationID string) ([]oa.Docket, error)
	SetDocketFinalization(ctx context.Context, rejectionID oa.RejectionID, kind oa.StrategyKind, show bool) error

	UpsertStrategyResult(ctx context.Context, r *oa.StrategyResult) error
	GetStrategyResult(ctx context.Context, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.StrategyResult, error)
	ListStrategyResults(ctx context.Context, rejectionID oa.RejectionID) ([]oa.StrategyResult, error)

	UpsertFinalizedAmendment(ctx context.Context, f *oa.FinalizedAmendment) error
	GetFinalizedAmendment(ctx context.Context, rejectionID oa.RejectionID) (*oa.FinalizedAmendment, error)
	UpsertOtherResponse(ctx context.Context, r *oa.OtherRejectionResponse) error
	GetOtherResponse(ctx context.Context, rejectionID oa.RejectionID) (*oa.OtherRejectionResponse, error)

	Close() error
}
