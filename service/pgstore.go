package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punnu35/expense-app/model"
)

const claimColumns = "id, owner_id, owner_email, title, description, vendor, amount, " +
	"occurred_on, receipt_refs, status, ocr_state, extracted_data, comments, " +
	"version, created_at, updated_at"

const claimsSchema = `
CREATE TABLE IF NOT EXISTS claims (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	owner_email    TEXT NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	vendor         TEXT NOT NULL DEFAULT '',
	amount         DOUBLE PRECISION NOT NULL,
	occurred_on    TEXT NOT NULL DEFAULT '',
	receipt_refs   TEXT[] NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL,
	ocr_state      TEXT NOT NULL DEFAULT '',
	extracted_data JSONB,
	comments       TEXT NOT NULL DEFAULT '',
	version        BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS claims_owner_idx ON claims (owner_id);
CREATE INDEX IF NOT EXISTS claims_status_idx ON claims (status);
`

// PostgresStore is a ClaimStore backed by Postgres. Conditional updates use
// a version column checked in the WHERE clause, so a lost race surfaces as
// zero affected rows instead of a silent overwrite.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the claims table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, claimsSchema); err != nil {
		return fmt.Errorf("failed to create claims schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Insert(ctx context.Context, claim *model.Claim) (*model.Claim, error) {
	stored := claim.Clone()
	stored.Version = 1
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	extracted, err := marshalExtracted(stored.ExtractedData)
	if err != nil {
		return nil, err
	}

	query := squirrel.Insert("claims").
		Columns("id", "owner_id", "owner_email", "title", "description", "vendor",
			"amount", "occurred_on", "receipt_refs", "status", "ocr_state",
			"extracted_data", "comments", "version", "created_at", "updated_at").
		Values(stored.ID, stored.OwnerID, stored.OwnerEmail, stored.Title,
			stored.Description, stored.Vendor, stored.Amount, stored.OccurredOn,
			stored.ReceiptRefs, string(stored.Status), string(stored.OCRState),
			extracted, stored.Comments, stored.Version, stored.CreatedAt,
			stored.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Claim, error) {
	query := squirrel.Select(claimColumns).
		From("claims").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	claim, err := scanClaim(s.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return claim, err
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch ClaimPatch, expectedVersion int64) (*model.Claim, error) {
	update := squirrel.Update("claims").
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "version": expectedVersion}).
		Suffix("RETURNING " + claimColumns).
		PlaceholderFormat(squirrel.Dollar)

	if patch.Title != nil {
		update = update.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		update = update.Set("description", *patch.Description)
	}
	if patch.Vendor != nil {
		update = update.Set("vendor", *patch.Vendor)
	}
	if patch.Amount != nil {
		update = update.Set("amount", *patch.Amount)
	}
	if patch.OccurredOn != nil {
		update = update.Set("occurred_on", *patch.OccurredOn)
	}
	if patch.Comments != nil {
		update = update.Set("comments", *patch.Comments)
	}
	if patch.Status != nil {
		update = update.Set("status", string(*patch.Status))
	}
	if patch.OCRState != nil {
		update = update.Set("ocr_state", string(*patch.OCRState))
	}
	if patch.ExtractedData != nil {
		extracted, err := marshalExtracted(patch.ExtractedData)
		if err != nil {
			return nil, err
		}
		update = update.Set("extracted_data", extracted)
	}
	if len(patch.AppendReceiptRefs) > 0 {
		update = update.Set("receipt_refs", squirrel.Expr("receipt_refs || ?", patch.AppendReceiptRefs))
	}

	sql, args, err := update.ToSql()
	if err != nil {
		return nil, err
	}

	claim, err := scanClaim(s.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// No row matched id+version: distinguish a missing claim from a
		// version race
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, model.ErrStoreConflict
	}
	return claim, err
}

func (s *PostgresStore) Query(ctx context.Context, filter ClaimFilter) ([]*model.Claim, error) {
	query := squirrel.Select(claimColumns).
		From("claims").
		OrderBy("created_at DESC, id ASC").
		PlaceholderFormat(squirrel.Dollar)

	if cond := filterCondition(filter); cond != nil {
		query = query.Where(cond)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []*model.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func filterCondition(filter ClaimFilter) squirrel.Sqlizer {
	var conds []squirrel.Sqlizer
	if filter.OwnerID != "" {
		conds = append(conds, squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, squirrel.Eq{"status": statuses})
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	}
	if filter.MatchAny {
		return squirrel.Or(conds)
	}
	return squirrel.And(conds)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var (
		claim     model.Claim
		status    string
		ocrState  string
		extracted []byte
	)
	err := row.Scan(&claim.ID, &claim.OwnerID, &claim.OwnerEmail, &claim.Title,
		&claim.Description, &claim.Vendor, &claim.Amount, &claim.OccurredOn,
		&claim.ReceiptRefs, &status, &ocrState, &extracted, &claim.Comments,
		&claim.Version, &claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		return nil, err
	}
	claim.Status = model.Status(status)
	claim.OCRState = model.OCRState(ocrState)
	if len(extracted) > 0 {
		var data model.ExtractedData
		if err := json.Unmarshal(extracted, &data); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data: %w", err)
		}
		claim.ExtractedData = &data
	}
	return &claim, nil
}

func marshalExtracted(data *model.ExtractedData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	return encoded, nil
}
