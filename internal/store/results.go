package store

import (
	"context"
	"fmt"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

type outputColumns struct {
	ComparisonTable   string `db:"comparison_table"`
	AmendedClaim      string `db:"amended_claim"`
	AmendmentStrategy string `db:"amendment_strategy"`
}

func encodeOutput(o oa.StrategyOutput) (outputColumns, error) {
	table, err := marshalJSON(o.ComparisonTable, "[]")
	if err != nil {
		return outputColumns{}, err
	}
	claim, err := marshalJSON(o.AmendedClaim, "{}")
	if err != nil {
		return outputColumns{}, err
	}
	return outputColumns{ComparisonTable: table, AmendedClaim: claim, AmendmentStrategy: o.AmendmentStrategy}, nil
}

func (c outputColumns) decode() (oa.StrategyOutput, error) {
	out := oa.StrategyOutput{AmendmentStrategy: c.AmendmentStrategy}
	if err := unmarshalJSON("comparison_table", c.ComparisonTable, &out.ComparisonTable); err != nil {
		return out, err
	}
	if err := unmarshalJSON("amended_claim", c.AmendedClaim, &out.AmendedClaim); err != nil {
		return out, err
	}
	return out, nil
}

type strategyRow struct {
	RejectionID   string `db:"rejection_id"`
	Kind          string `db:"kind"`
	ApplicationID string `db:"application_id"`
	outputColumns
	UpdatedAt string `db:"updated_at"`
}

func (r strategyRow) decode() (*oa.StrategyResult, error) {
	out, err := r.outputColumns.decode()
	if err != nil {
		return nil, err
	}
	return &oa.StrategyResult{
		RejectionID:    oa.RejectionID(r.RejectionID),
		ApplicationID:  r.ApplicationID,
		Kind:           oa.StrategyKind(r.Kind),
		StrategyOutput: out,
		UpdatedAt:      parseTime(r.UpdatedAt),
	}, nil
}

const strategyColumns = `rejection_id, kind, application_id, comparison_table, amended_claim, amendment_strategy, updated_at`

// UpsertStrategyResult overwrites the result for (rejection, kind).
func (s *SQLiteStore) UpsertStrategyResult(ctx context.Context, r *oa.StrategyResult) error {
	cols, err := encodeOutput(r.StrategyOutput)
	if err != nil {
		return err
	}
	r.UpdatedAt = s.now().UTC()
	_, err = s.db.ExecContext(ctx, `INSERT INTO strategy_results (`+strategyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rejection_id, kind) DO UPDATE SET
			application_id = excluded.application_id,
			comparison_table = excluded.comparison_table,
			amended_claim = excluded.amended_claim,
			amendment_strategy = excluded.amendment_strategy,
			updated_at = excluded.updated_at`,
		string(r.RejectionID), string(r.Kind), r.ApplicationID,
		cols.ComparisonTable, cols.AmendedClaim, cols.AmendmentStrategy, timeToString(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert strategy result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetStrategyResult(ctx context.Context, rejectionID oa.RejectionID, kind oa.StrategyKind) (*oa.StrategyResult, error) {
	var row strategyRow
	err := s.db.GetContext(ctx, &row, `SELECT `+strategyColumns+` FROM strategy_results WHERE rejection_id = ? AND kind = ?`,
		string(rejectionID), string(kind))
	if err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (s *SQLiteStore) ListStrategyResults(ctx context.Context, rejectionID oa.RejectionID) ([]oa.StrategyResult, error) {
	var rows []strategyRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+strategyColumns+` FROM strategy_results WHERE rejection_id = ? ORDER BY kind`, string(rejectionID)); err != nil {
		return nil, err
	}
	out := make([]oa.StrategyResult, 0, len(rows))
	for _, r := range rows {
		res, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

type amendmentRow struct {
	RejectionID   string `db:"rejection_id"`
	ApplicationID string `db:"application_id"`
	Kind          string `db:"kind"`
	outputColumns
	Status      string `db:"status"`
	FinalizedAt string `db:"finalized_at"`
	UpdatedAt   string `db:"updated_at"`
}

const amendmentColumns = `rejection_id, application_id, kind, comparison_table, amended_claim, amendment_strategy, status, finalized_at, updated_at`

// UpsertFinalizedAmendment writes the canonical amendment. A draft never
// replaces a finalized record; that case returns ErrFinalized.
func (s *SQLiteStore) UpsertFinalizedAmendment(ctx context.Context, f *oa.FinalizedAmendment) error {
	cols, err := encodeOutput(f.StrategyOutput)
	if err != nil {
		return err
	}
	f.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO finalized_amendments (`+amendmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rejection_id) DO UPDATE SET
			application_id = excluded.application_id,
			kind = excluded.kind,
			comparison_table = excluded.comparison_table,
			amended_claim = excluded.amended_claim,
			amendment_strategy = excluded.amendment_strategy,
			status = excluded.status,
			finalized_at = excluded.finalized_at,
			updated_at = excluded.updated_at
		WHERE finalized_amendments.status <> 'finalized' OR excluded.status = 'finalized'`,
		string(f.RejectionID), f.ApplicationID, string(f.Kind),
		cols.ComparisonTable, cols.AmendedClaim, cols.AmendmentStrategy,
		string(f.Status), timePtrToString(f.FinalizedAt), timeToString(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert finalized amendment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFinalized
	}
	return nil
}

func (s *SQLiteStore) GetFinalizedAmendment(ctx context.Context, rejectionID oa.RejectionID) (*oa.FinalizedAmendment, error) {
	var row amendmentRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+amendmentColumns+` FROM finalized_amendments WHERE rejection_id = ?`, string(rejectionID)); err != nil {
		return nil, notFound(err)
	}
	out, err := row.outputColumns.decode()
	if err != nil {
		return nil, err
	}
	return &oa.FinalizedAmendment{
		RejectionID:    oa.RejectionID(row.RejectionID),
		ApplicationID:  row.ApplicationID,
		Kind:           oa.StrategyKind(row.Kind),
		StrategyOutput: out,
		Status:         oa.RecordStatus(row.Status),
		FinalizedAt:    parseTimePtr(row.FinalizedAt),
		UpdatedAt:      parseTime(row.UpdatedAt),
	}, nil
}

type otherResponseRow struct {
	RejectionID   string `db:"rejection_id"`
	ApplicationID string `db:"application_id"`
	Response      string `db:"response"`
	Status        string `db:"status"`
	FinalizedAt   string `db:"finalized_at"`
	UpdatedAt     string `db:"updated_at"`
}

// UpsertOtherResponse follows the same no-revert rule as
// UpsertFinalizedAmendment.
func (s *SQLiteStore) UpsertOtherResponse(ctx context.Context, r *oa.OtherRejectionResponse) error {
	r.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO other_responses (rejection_id, application_id, response, status, finalized_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rejection_id) DO UPDATE SET
			application_id = excluded.application_id,
			response = excluded.response,
			status = excluded.status,
			finalized_at = excluded.finalized_at,
			updated_at = excluded.updated_at
		WHERE other_responses.status <> 'finalized' OR excluded.status = 'finalized'`,
		string(r.RejectionID), r.ApplicationID, r.Response, string(r.Status),
		timePtrToString(r.FinalizedAt), timeToString(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert other response: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFinalized
	}
	return nil
}

func (s *SQLiteStore) GetOtherResponse(ctx context.Context, rejectionID oa.RejectionID) (*oa.OtherRejectionResponse, error) {
	var row otherResponseRow
	err := s.db.GetContext(ctx, &row, `SELECT rejection_id, application_id, response, status, finalized_at, updated_at
		FROM other_responses WHERE rejection_id = ?`, string(rejectionID))
	if err != nil {
		return nil, notFound(err)
	}
	return &oa.OtherRejectionResponse{
		RejectionID:   oa.RejectionID(row.RejectionID),
		ApplicationID: row.ApplicationID,
		Response:      row.Response,
		Status:        oa.RecordStatus(row.Status),
		FinalizedAt:   parseTimePtr(row.FinalizedAt),
		UpdatedAt:     parseTime(row.UpdatedAt),
	}, nil
}
