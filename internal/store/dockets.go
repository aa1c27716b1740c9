package store

import (
	"context"
	"fmt"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

type docketRow struct {
	RejectionID       string `db:"rejection_id"`
	ApplicationID     string `db:"application_id"`
	ClaimsRejected    string `db:"claims_rejected"`
	PriorArt          string `db:"prior_art"`
	Basis             string `db:"basis"`
	FinalizedStrategy string `db:"finalized_strategy"`
	ShowFinalizedType bool   `db:"show_finalized_type"`
	CreatedAt         string `db:"created_at"`
}

const docketColumns = `rejection_id, application_id, claims_rejected, prior_art, basis, finalized_strategy, show_finalized_type, created_at`

func (r docketRow) decode() (*oa.Docket, error) {
	d := &oa.Docket{
		RejectionID:       oa.RejectionID(r.RejectionID),
		ApplicationID:     r.ApplicationID,
		Basis:             oa.Basis(r.Basis),
		FinalizedStrategy: oa.StrategyKind(r.FinalizedStrategy),
		ShowFinalizedType: r.ShowFinalizedType,
		CreatedAt:         parseTime(r.CreatedAt),
	}
	if err := unmarshalJSON("claims_rejected", r.ClaimsRejected, &d.ClaimsRejected); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("prior_art", r.PriorArt, &d.PriorArt); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDocket inserts d once. A second insert for the same rejection returns
// ErrDuplicate and leaves the first untouched.
func (s *SQLiteStore) CreateDocket(ctx context.Context, d *oa.Docket) error {
	claims, err := marshalJSON(d.ClaimsRejected, "[]")
	if err != nil {
		return err
	}
	priorArt, err := marshalJSON(d.PriorArt, "[]")
	if err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO dockets (`+docketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rejection_id) DO NOTHING`,
		string(d.RejectionID), d.ApplicationID, claims, priorArt, string(d.Basis),
		string(d.FinalizedStrategy), boolToInt(d.ShowFinalizedType), timeToString(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert docket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLiteStore) GetDocket(ctx context.Context, rejectionID oa.RejectionID) (*oa.Docket, error) {
	var row docketRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+docketColumns+` FROM dockets WHERE rejection_id = ?`, string(rejectionID)); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (s *SQLiteStore) ListDockets(ctx context.Context, applicationID string) ([]oa.Docket, error) {
	var rows []docketRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+docketColumns+` FROM dockets WHERE application_id = ? ORDER BY created_at, rejection_id`, applicationID); err != nil {
		return nil, err
	}
	out := make([]oa.Docket, 0, len(rows))
	for _, r := range rows {
		d, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("docket %s: %w", r.RejectionID, err)
		}
		out = append(out, *d)
	}
	return out, nil
}

// SetDocketFinalization records which strategy was finalized and whether that
// choice is current. An empty kind keeps the stored strategy.
func (s *SQLiteStore) SetDocketFinalization(ctx context.Context, rejectionID oa.RejectionID, kind oa.StrategyKind, show bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE dockets SET
		finalized_strategy = CASE WHEN ? = '' THEN finalized_strategy ELSE ? END,
		show_finalized_type = ?
		WHERE rejection_id = ?`,
		string(kind), string(kind), boolToInt(show), string(rejectionID),
	)
	if err != nil {
		return fmt.Errorf("update docket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
