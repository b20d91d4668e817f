package repository

import (
	"context"
	"fmt"

	"casefinder-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for the case corpus
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

// ListOrdered returns every case in corpus order. The position column is the
// index position, so the ordering here must match the order used at build time.
func (r *CaseRepository) ListOrdered(ctx context.Context) ([]models.CaseRecord, error) {
	query := `
		SELECT position, title, jurisdiction, summary, link
		FROM legal_cases
		ORDER BY position ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal cases: %w", err)
	}
	defer rows.Close()

	var cases []models.CaseRecord
	for rows.Next() {
		var c models.CaseRecord
		if err := rows.Scan(&c.Position, &c.Title, &c.Jurisdiction, &c.Summary, &c.Link); err != nil {
			return nil, fmt.Errorf("failed to scan legal case: %w", err)
		}
		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legal cases: %w", err)
	}

	return cases, nil
}

// Count returns the number of stored cases
func (r *CaseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM legal_cases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count legal cases: %w", err)
	}
	return n, nil
}

// ReplaceAll swaps the whole corpus in one transaction, renumbering positions
// from zero in slice order.
func (r *CaseRepository) ReplaceAll(ctx context.Context, cases []models.CaseRecord) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM legal_cases`); err != nil {
		return 0, fmt.Errorf("failed to clear legal cases: %w", err)
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"legal_cases"},
		[]string{"position", "title", "jurisdiction", "summary", "link"},
		pgx.CopyFromRows(caseRows(cases)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy legal cases: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit legal cases: %w", err)
	}
	return copied, nil
}

func caseRows(cases []models.CaseRecord) [][]any {
	rows := make([][]any, len(cases))
	for i, c := range cases {
		rows[i] = []any{i, c.Title, c.Jurisdiction, c.Summary, c.LinkOrNil()}
	}
	return rows
}
