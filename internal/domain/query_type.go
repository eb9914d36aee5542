package domain

import "time"

// QueryType is an admin-configured kind of ticket and the departments allowed to receive it.
type QueryType struct {
	ID                 int64
	Code               string
	Name               string
	Description        string
	IsActive           bool
	AllowedDepartments []int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Allows reports whether departmentID may receive tickets of this type.
// A type with no allowed departments accepts any target.
func (q *QueryType) Allows(departmentID int64) bool {
	if len(q.AllowedDepartments) == 0 {
		return true
	}
	for _, id := range q.AllowedDepartments {
		if id == departmentID {
			return true
		}
	}
	return false
}
