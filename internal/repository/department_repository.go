package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// DepartmentRepository reads routing endpoints. Only seeding writes them.
type DepartmentRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Department, error)
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	// LockByCode takes the department row lock that serializes admissions
	// into the department's receiver hold.
	LockByCode(ctx context.Context, code string) (*domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	Upsert(ctx context.Context, dept *domain.Department) error
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

const departmentColumns = `id, code, name, display_name, description, created_at`

func (r *departmentRepository) GetByCode(ctx context.Context, code string) (*domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *departmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *departmentRepository) LockByCode(ctx context.Context, code string) (*domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE code=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, code)
}

func (r *departmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Department, error) {
	var dept domain.Department
	if err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&dept.ID,
		&dept.Code,
		&dept.Name,
		&dept.DisplayName,
		&dept.Description,
		&dept.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments ORDER BY code`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.ID, &dept.Code, &dept.Name, &dept.DisplayName, &dept.Description, &dept.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func (r *departmentRepository) Upsert(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (code, name, display_name, description)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (code) DO UPDATE
            SET name=EXCLUDED.name, display_name=EXCLUDED.display_name, description=EXCLUDED.description
        RETURNING id, created_at`
	if err := conn(ctx, r.pool).QueryRow(ctx, query,
		dept.Code,
		dept.Name,
		dept.DisplayName,
		dept.Description,
	).Scan(&dept.ID, &dept.CreatedAt); err != nil {
		return fmt.Errorf("upsert department %s: %w", dept.Code, err)
	}
	return nil
}
