package store

import (
	"context"
	"fmt"
	"strings"

	oa "github.com/joelkehle/office-action-response/internal/officeaction"
)

type applicationRow struct {
	ID                  string `db:"id"`
	ApplicationNumber   string `db:"application_number"`
	PublicationNumber   string `db:"publication_number"`
	OwnerID             string `db:"owner_id"`
	Title               string `db:"title"`
	FilingDate          string `db:"filing_date"`
	Rejections          string `db:"rejections"`
	ClaimStatuses       string `db:"claim_statuses"`
	ClaimsIngested      bool   `db:"claims_ingested"`
	DescriptionIngested bool   `db:"description_ingested"`
	PriorArtIngested    bool   `db:"prior_art_ingested"`
	FirstAction         bool   `db:"first_action"`
	ClaimCount          int    `db:"claim_count"`
	CreatedAt           string `db:"created_at"`
	UpdatedAt           string `db:"updated_at"`
}

const applicationColumns = `id, application_number, publication_number, owner_id, title, filing_date,
	rejections, claim_statuses, claims_ingested, description_ingested, prior_art_ingested,
	first_action, claim_count, created_at, updated_at`

func (r applicationRow) decode() (*oa.Application, error) {
	app := &oa.Application{
		ID:                  r.ID,
		ApplicationNumber:   r.ApplicationNumber,
		PublicationNumber:   r.PublicationNumber,
		OwnerID:             r.OwnerID,
		Title:               r.Title,
		FilingDate:          r.FilingDate,
		ClaimsIngested:      r.ClaimsIngested,
		DescriptionIngested: r.DescriptionIngested,
		PriorArtIngested:    r.PriorArtIngested,
		FirstAction:         r.FirstAction,
		ClaimCount:          r.ClaimCount,
		CreatedAt:           parseTime(r.CreatedAt),
		UpdatedAt:           parseTime(r.UpdatedAt),
	}
	if err := unmarshalJSON("rejections", r.Rejections, &app.Rejections); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("claim_statuses", r.ClaimStatuses, &app.ClaimStatuses); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *SQLiteStore) ApplicationExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM applications WHERE id = ?`, id); err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertApplication returns ErrDuplicate when the id is taken.
func (s *SQLiteStore) InsertApplication(ctx context.Context, app *oa.Application) error {
	rejections, err := marshalJSON(app.Rejections, "[]")
	if err != nil {
		return err
	}
	statuses, err := marshalJSON(app.ClaimStatuses, "[]")
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		app.ID, app.ApplicationNumber, app.PublicationNumber, app.OwnerID, app.Title, app.FilingDate,
		rejections, statuses,
		boolToInt(app.ClaimsIngested), boolToInt(app.DescriptionIngested), boolToInt(app.PriorArtIngested),
		boolToInt(app.FirstAction), app.ClaimCount,
		timeToString(app.CreatedAt), timeToString(app.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLiteStore) GetApplication(ctx context.Context, id string) (*oa.Application, error) {
	var row applicationRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (s *SQLiteStore) ListApplications(ctx context.Context, ownerID string) ([]oa.Application, error) {
	var rows []applicationRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+applicationColumns+` FROM applications WHERE owner_id = ? ORDER BY created_at, id`, ownerID); err != nil {
		return nil, err
	}
	out := make([]oa.Application, 0, len(rows))
	for _, r := range rows {
		app, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("application %s: %w", r.ID, err)
		}
		out = append(out, *app)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateApplication(ctx context.Context, app *oa.Application) error {
	rejections, err := marshalJSON(app.Rejections, "[]")
	if err != nil {
		return err
	}
	statuses, err := marshalJSON(app.ClaimStatuses, "[]")
	if err != nil {
		return err
	}
	app.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE applications SET
		application_number = ?, publication_number = ?, title = ?, filing_date = ?,
		rejections = ?, claim_statuses = ?,
		claims_ingested = MAX(claims_ingested, ?),
		description_ingested = MAX(description_ingested, ?),
		prior_art_ingested = MAX(prior_art_ingested, ?),
		first_action = ?, claim_count = ?, updated_at = ?
		WHERE id = ?`,
		app.ApplicationNumber, app.PublicationNumber, app.Title, app.FilingDate,
		rejections, statuses,
		boolToInt(app.ClaimsIngested), boolToInt(app.DescriptionIngested), boolToInt(app.PriorArtIngested),
		boolToInt(app.FirstAction), app.ClaimCount, timeToString(app.UpdatedAt),
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type documentsRow struct {
	ApplicationID   string `db:"application_id"`
	ClaimText       string `db:"claim_text"`
	DescriptionText string `db:"description_text"`
	ClaimTree       string `db:"claim_tree"`
	PriorArt        string `db:"prior_art"`
	UpdatedAt       string `db:"updated_at"`
}

func (s *SQLiteStore) GetDocuments(ctx context.Context, applicationID string) (*oa.ApplicationDocuments, error) {
	var row documentsRow
	err := s.db.GetContext(ctx, &row, `SELECT application_id, claim_text, description_text, claim_tree, prior_art, updated_at
		FROM application_documents WHERE application_id = ?`, applicationID)
	if err != nil {
		return nil, notFound(err)
	}
	docs := &oa.ApplicationDocuments{
		ApplicationID:   row.ApplicationID,
		ClaimText:       row.ClaimText,
		DescriptionText: row.DescriptionText,
		UpdatedAt:       parseTime(row.UpdatedAt),
	}
	if err := unmarshalJSON("claim_tree", row.ClaimTree, &docs.ClaimTree); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("prior_art", row.PriorArt, &docs.PriorArt); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveDocuments writes the whole record, creating it on first use.
func (s *SQLiteStore) SaveDocuments(ctx context.Context, docs *oa.ApplicationDocuments) error {
	if strings.TrimSpace(docs.ApplicationID) == "" {
		return fmt.Errorf("save documents: application id is required")
	}
	tree, err := marshalJSON(docs.ClaimTree, "[]")
	if err != nil {
		return err
	}
	priorArt, err := marshalJSON(docs.PriorArt, "[]")
	if err != nil {
		return err
	}
	docs.UpdatedAt = s.now().UTC()
	_, err = s.db.ExecContext(ctx, `INSERT INTO application_documents (application_id, claim_text, description_text, claim_tree, prior_art, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id) DO UPDATE SET
			claim_text = excluded.claim_text,
			description_text = excluded.description_text,
			claim_tree = excluded.claim_tree,
			prior_art = excluded.prior_art,
			updated_at = excluded.updated_at`,
		docs.ApplicationID, docs.ClaimText, docs.DescriptionText, tree, priorArt, timeToString(docs.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save documents: %w", err)
	}
	return nil
}
