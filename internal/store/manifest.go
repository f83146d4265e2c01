package store

import "time"

// A Manifest represents one ingested requirements file belonging to a project.
// Re-ingesting the same project/path pair replaces the prior declarations.
type Manifest struct {
	ID        int32     `json:"id" db:"id"`
	ProjectID int32     `json:"project_id" db:"project_id"`
	Path      string    `json:"path" db:"path"`
	Revision  string    `json:"revision,omitempty" db:"revision"`
	Ingested  time.Time `json:"ingested_at" db:"ingested_at"`
}
