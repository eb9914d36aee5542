// Package sequence issues the per-day counters and tags that identify tickets.
package sequence

import (
	"context"
	"fmt"
	"time"
)

const tagDateLayout = "060102"

// Store persists one counter per calendar date. Next must create the counter
// at zero when absent and increment it under a row lock.
type Store interface {
	Next(ctx context.Context, date time.Time) (int, error)
}

// Generator hands out daily sequence numbers and composes ticket tags.
type Generator struct {
	store    Store
	location *time.Location
}

// NewGenerator builds a generator whose calendar days are taken in loc.
func NewGenerator(store Store, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{store: store, location: loc}
}

// Location returns the zone used to decide the calendar date.
func (g *Generator) Location() *time.Location {
	return g.location
}

// Next returns the next sequence value for the calendar date of at. Values for
// one date are distinct and increase in lock acquisition order.
func (g *Generator) Next(ctx context.Context, at time.Time) (int, error) {
	seq, err := g.store.Next(ctx, g.day(at))
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// BuildTicketTag transliterates typeText, draws the next sequence for the date
// of at and composes TYPE-DEPT-YYMMDD-SEQ.
func (g *Generator) BuildTicketTag(ctx context.Context, typeText, deptCode string, at time.Time) (string, error) {
	typeCode, err := Initials(typeText)
	if err != nil {
		return "", err
	}
	day := g.day(at)
	seq, err := g.Next(ctx, day)
	if err != nil {
		return "", err
	}
	return BuildTag(typeCode, deptCode, day, seq), nil
}

func (g *Generator) day(at time.Time) time.Time {
	y, m, d := at.In(g.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.location)
}

// BuildTag formats a tag. The sequence is zero padded to three digits and
// widens past 999.
func BuildTag(typeCode, deptCode string, date time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%s-%03d", typeCode, deptCode, date.Format(tagDateLayout), seq)
}
