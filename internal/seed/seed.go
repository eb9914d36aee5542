// Package seed loads departments, capacity limits and query types from a
// TOML file into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// File is the seed document.
//
//	[capacity]
//	hub = 100
//	department = 50
//
//	[[departments]]
//	code = "PD"
//	name = "Procurement"
//
//	[[query_types]]
//	code = "QGD"
//	name = "请购单"
//	departments = ["PD"]
type File struct {
	Capacity    *Capacity    `toml:"capacity"`
	Departments []Department `toml:"departments"`
	QueryTypes  []QueryType  `toml:"query_types"`
}

// Capacity sets the system limits. Zero keeps the stored value.
type Capacity struct {
	Hub        int `toml:"hub"`
	Department int `toml:"department"`
}

// Department is one routing endpoint.
type Department struct {
	Code        string `toml:"code"`
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	Description string `toml:"description"`
}

// QueryType is a ticket kind and the department codes allowed to receive it.
type QueryType struct {
	Code        string   `toml:"code"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Inactive    bool     `toml:"inactive"`
	Departments []string `toml:"departments"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Departments int
	QueryTypes  int
	Capacity    *domain.SystemConfig
}

// Dependencies are the repositories Apply writes through.
type Dependencies struct {
	Transactor     repository.Transactor
	DepartmentRepo repository.DepartmentRepository
	ConfigRepo     repository.ConfigRepository
	QueryTypeRepo  repository.QueryTypeRepository
}

// Load reads and validates a seed file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (*File, error) {
	var file File
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks codes are present and unique and that query types only
// reference departments declared in the file or already stored.
func (f *File) Validate() error {
	var errs []error
	if f.Capacity != nil && (f.Capacity.Hub < 0 || f.Capacity.Department < 0) {
		errs = append(errs, errors.New("capacity values must not be negative"))
	}

	seen := map[string]bool{}
	for i, d := range f.Departments {
		code := strings.TrimSpace(d.Code)
		switch {
		case code == "":
			errs = append(errs, fmt.Errorf("departments[%d]: code required", i))
		case seen[code]:
			errs = append(errs, fmt.Errorf("departments[%d]: duplicate code %s", i, code))
		}
		seen[code] = true
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("departments[%d]: name required", i))
		}
	}

	types := map[string]bool{}
	for i, q := range f.QueryTypes {
		code := strings.ToUpper(strings.TrimSpace(q.Code))
		switch {
		case code == "":
			errs = append(errs, fmt.Errorf("query_types[%d]: code required", i))
		case types[code]:
			errs = append(errs, fmt.Errorf("query_types[%d]: duplicate code %s", i, code))
		}
		types[code] = true
	}
	return errors.Join(errs...)
}

// Apply writes the document in one transaction. Entries are upserted by code
// so a seed can be re-applied.
func Apply(ctx context.Context, deps Dependencies, file *File) (*Summary, error) {
	summary := &Summary{}
	err := deps.Transactor.WithTx(ctx, func(ctx context.Context) error {
		*summary = Summary{}
		if file.Capacity != nil {
			cfg, err := deps.ConfigRepo.Lock(ctx)
			if err != nil {
				return err
			}
			if file.Capacity.Hub > 0 {
				cfg.HubCapacity = file.Capacity.Hub
			}
			if file.Capacity.Department > 0 {
				cfg.ReceiverCapacity = file.Capacity.Department
			}
			if err := deps.ConfigRepo.Update(ctx, cfg); err != nil {
				return err
			}
			summary.Capacity = cfg
		}

		ids := map[string]int64{}
		for _, d := range file.Departments {
			dept := &domain.Department{
				Code:        strings.TrimSpace(d.Code),
				Name:        strings.TrimSpace(d.Name),
				DisplayName: strings.TrimSpace(d.DisplayName),
				Description: d.Description,
			}
			if err := deps.DepartmentRepo.Upsert(ctx, dept); err != nil {
				return err
			}
			ids[dept.Code] = dept.ID
			summary.Departments++
		}

		for _, q := range file.QueryTypes {
			qt := &domain.QueryType{
				Code:        strings.ToUpper(strings.TrimSpace(q.Code)),
				Name:        strings.TrimSpace(q.Name),
				Description: q.Description,
				IsActive:    !q.Inactive,
			}
			for _, code := range q.Departments {
				code = strings.TrimSpace(code)
				id, ok := ids[code]
				if !ok {
					dept, err := deps.DepartmentRepo.GetByCode(ctx, code)
					if err != nil {
						return fmt.Errorf("query type %s: %w", qt.Code, err)
					}
					id = dept.ID
				}
				qt.AllowedDepartments = append(qt.AllowedDepartments, id)
			}
			if err := deps.QueryTypeRepo.Upsert(ctx, qt); err != nil {
				return err
			}
			summary.QueryTypes++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
