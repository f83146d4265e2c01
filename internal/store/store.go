package store

import "context"

// Store defines the operations available on an argus data store
type Store interface {
	SaveProject(ctx context.Context, name, description string) (int32, error)
	GetProjects(ctx context.Context, namesOrIDs ...string) ([]Project, error)
	QueryProjects(ctx context.Context, nameFilter string, pageToken string, count int) ([]Project, string, error)

	SaveManifest(ctx context.Context, projectID int32, path, revision string, decls []Declaration) (int32, error)
	GetManifests(ctx context.Context, project string) ([]Manifest, error)

	QueryPackages(ctx context.Context, nameFilter string, pageToken string, count int) ([]Package, string, error)
	GetDeclarations(ctx context.Context, pkg string, pageToken string, count int) ([]DeclarationDetail, string, error)

	GetConflicts(ctx context.Context, project string) ([]Conflict, error)
}
