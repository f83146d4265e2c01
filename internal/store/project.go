package store

import "database/sql"

// A Project represents a code base whose requirements manifests are tracked
// by the system.
type Project struct {
	ID          int32          `json:"id" db:"id"`
	Name        string         `json:"name,omitempty" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`
}
