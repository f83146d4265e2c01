package store

// A Package represents a particular Python package known by the system.
// The name is always stored in canonical (PEP 503) form.
type Package struct {
	ID   int32  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
