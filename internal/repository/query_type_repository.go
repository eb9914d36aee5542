package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// QueryTypeRepository manages registered ticket types.
type QueryTypeRepository interface {
	// GetByCode returns nil, nil when no type is registered under code.
	GetByCode(ctx context.Context, code string) (*domain.QueryType, error)
	List(ctx context.Context) ([]domain.QueryType, error)
	Upsert(ctx context.Context, qt *domain.QueryType) error
}

type queryTypeRepository struct {
	pool *pgxpool.Pool
}

// NewQueryTypeRepository builds the repository.
func NewQueryTypeRepository(pool *pgxpool.Pool) QueryTypeRepository {
	return &queryTypeRepository{pool: pool}
}

const queryTypeSelect = `
        SELECT q.id, q.code, q.name, q.description, q.is_active, q.created_at, q.updated_at,
               COALESCE(array_agg(qd.department_id ORDER BY qd.department_id)
                        FILTER (WHERE qd.department_id IS NOT NULL), '{}')
        FROM query_types q
        LEFT JOIN query_type_departments qd ON qd.query_type_id = q.id`

func (r *queryTypeRepository) GetByCode(ctx context.Context, code string) (*domain.QueryType, error) {
	query := queryTypeSelect + ` WHERE q.code=$1 GROUP BY q.id`
	var qt domain.QueryType
	err := conn(ctx, r.pool).QueryRow(ctx, query, code).Scan(
		&qt.ID,
		&qt.Code,
		&qt.Name,
		&qt.Description,
		&qt.IsActive,
		&qt.CreatedAt,
		&qt.UpdatedAt,
		&qt.AllowedDepartments,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query type: %w", err)
	}
	return &qt, nil
}

func (r *queryTypeRepository) List(ctx context.Context) ([]domain.QueryType, error) {
	query := queryTypeSelect + ` GROUP BY q.id ORDER BY q.code`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list query types: %w", err)
	}
	defer rows.Close()

	var result []domain.QueryType
	for rows.Next() {
		var qt domain.QueryType
		if err := rows.Scan(&qt.ID, &qt.Code, &qt.Name, &qt.Description, &qt.IsActive,
			&qt.CreatedAt, &qt.UpdatedAt, &qt.AllowedDepartments); err != nil {
			return nil, fmt.Errorf("scan query type: %w", err)
		}
		result = append(result, qt)
	}
	return result, rows.Err()
}

// Upsert writes the type and replaces its allowed departments. Callers wrap
// it in a transaction.
func (r *queryTypeRepository) Upsert(ctx context.Context, qt *domain.QueryType) error {
	const upsert = `
        INSERT INTO query_types (code, name, description, is_active)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (code) DO UPDATE
            SET name=EXCLUDED.name, description=EXCLUDED.description, is_active=EXCLUDED.is_active, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	db := conn(ctx, r.pool)
	if err := db.QueryRow(ctx, upsert, qt.Code, qt.Name, qt.Description, qt.IsActive).
		Scan(&qt.ID, &qt.CreatedAt, &qt.UpdatedAt); err != nil {
		return fmt.Errorf("upsert query type %s: %w", qt.Code, err)
	}

	if _, err := db.Exec(ctx, `DELETE FROM query_type_departments WHERE query_type_id=$1`, qt.ID); err != nil {
		return fmt.Errorf("clear query type departments: %w", err)
	}
	for _, deptID := range qt.AllowedDepartments {
		if _, err := db.Exec(ctx,
			`INSERT INTO query_type_departments (query_type_id, department_id) VALUES ($1,$2)`,
			qt.ID, deptID,
		); err != nil {
			return fmt.Errorf("link query type department: %w", err)
		}
	}
	return nil
}
