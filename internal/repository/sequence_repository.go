package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository stores one counter per calendar date.
type SequenceRepository interface {
	// Next creates the date's counter at zero if absent, increments it under
	// the row lock and returns the new value.
	Next(ctx context.Context, date time.Time) (int, error)
	Current(ctx context.Context, date time.Time) (int, error)
}

type sequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository builds the repository.
func NewSequenceRepository(pool *pgxpool.Pool) SequenceRepository {
	return &sequenceRepository{pool: pool}
}

func (r *sequenceRepository) Next(ctx context.Context, date time.Time) (int, error) {
	const query = `
        INSERT INTO daily_sequences (seq_date, sequence)
        VALUES ($1, 1)
        ON CONFLICT (seq_date) DO UPDATE SET sequence = daily_sequences.sequence + 1
        RETURNING sequence`
	var seq int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, dateOnly(date)).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

func (r *sequenceRepository) Current(ctx context.Context, date time.Time) (int, error) {
	const query = `SELECT sequence FROM daily_sequences WHERE seq_date=$1`
	var seq int
	err := conn(ctx, r.pool).QueryRow(ctx, query, dateOnly(date)).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current sequence: %w", err)
	}
	return seq, nil
}

// dateOnly keeps the calendar date of t in its own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
