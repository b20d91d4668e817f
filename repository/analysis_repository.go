package repository

import (
	"context"
	"errors"
	"fmt"

	"casefinder-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAnalysisNotFound is returned when no analysis has the requested id
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisRepository handles database operations for recorded analyses
type AnalysisRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create stores an analysis and fills in its id and creation time
func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	query := `
		INSERT INTO case_analyses (
			source, filename, input_excerpt, case_titles, issues, "references", raw_output
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		a.Source,
		a.Filename,
		a.InputExcerpt,
		nonNil(a.CaseTitles),
		nonNil(a.Issues),
		nonNil(a.References),
		a.RawOutput,
	).Scan(&a.ID, &a.CreatedAt)
}

// GetByID retrieves an analysis by ID
func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	query := `
		SELECT id, source, filename, input_excerpt, case_titles, issues, "references",
			raw_output, created_at
		FROM case_analyses
		WHERE id = $1`

	a, err := scanAnalysis(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListRecent returns the newest analyses first
func (r *AnalysisRepository) ListRecent(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, source, filename, input_excerpt, case_titles, issues, "references",
			raw_output, created_at
		FROM case_analyses
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var out []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}
	return out, nil
}

func scanAnalysis(row pgx.Row) (*models.Analysis, error) {
	a := &models.Analysis{}
	err := row.Scan(
		&a.ID,
		&a.Source,
		&a.Filename,
		&a.InputExcerpt,
		&a.CaseTitles,
		&a.Issues,
		&a.References,
		&a.RawOutput,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CaseTitles = nonNil(a.CaseTitles)
	a.Issues = nonNil(a.Issues)
	a.References = nonNil(a.References)
	return a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
