package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v4/stdlib" //nolint: revive // intentional blank import b/c that's how pgx works
	"github.com/jmoiron/sqlx"
)

const (
	tableProjects     = "project"
	tableManifests    = "manifest"
	tablePackages     = "package"
	tableDeclarations = "declaration"
)

var (
	columnsProjects = []string{"id", "name", "description"}

	columnsDeclarationDetails = []string{
		"p.name AS project",
		"m.path AS manifest_path",
		"m.revision AS revision",
		"pkg.name AS package",
		"d.raw",
		"d.pinned_version",
		"d.line",
	}

	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

// PostgresClient performs store-related operations against a postgres backend
// database.
type PostgresClient struct {
	db  *sqlx.DB
	log Logger
}

// ensure the PG client satisfies the Store interface
var _ Store = (*PostgresClient)(nil)

// NewPostgresClient initializes a store client for interacting with a
// PostgreSQL backend. If it can not immediately reach the target database, an
// error is returned.
func NewPostgresClient(ctx context.Context, url string, opts ...PGOption) (*PostgresClient, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		return nil, err
	}
	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}
	c := PostgresClient{
		db:  db,
		log: nopLogger{},
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, fmt.Errorf("error applying client option: %w", err)
		}
	}
	return &c, nil
}

// Ping verifies the backend database connection.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// SaveProject upserts project metadata. If there is an existing project with
// the provided name the description will be updated.  Otherwise, a new
// project will be inserted.
func (p *PostgresClient) SaveProject(ctx context.Context, name, description string) (int32, error) {
	if name == "" {
		return -1, fmt.Errorf("project name must be provided")
	}

	sql, args, err := psql.
		Insert(tableProjects).
		Columns(columnsProjects[1:]...). // don't provide ID on an insert
		Values(name, description).
		Suffix(`ON CONFLICT (name) DO UPDATE SET description = ? RETURNING id`, description).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing database command: %w", err)
	}
	res, err := p.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error executing database command: %w", err)
	}
	defer func() { _ = res.Close() }()

	if !res.Next() {
		return 0, fmt.Errorf("database insert modified 0 rows")
	}
	var projectID int32
	if err = res.Scan(&projectID); err != nil {
		return 0, fmt.Errorf("error processing database command result: %w", err)
	}
	if res.Next() {
		return 0, fmt.Errorf("database insert modified more than 1 row")
	}
	return projectID, err
}

// GetProjects retrieves projects by name or ID, where if no keys are provided,
// all projects are returned.
func (p *PostgresClient) GetProjects(ctx context.Context, namesOrIDs ...string) ([]Project, error) {
	q := psql.
		Select(columnsProjects...).
		From(tableProjects)
	if len(namesOrIDs) != 0 {
		if _, parseErr := strconv.ParseInt(namesOrIDs[0], 10, 32); parseErr == nil {
			q = q.Where(sq.Eq{"id": namesOrIDs})
		} else {
			q = q.Where(sq.Eq{"name": namesOrIDs})
		}
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var projects []Project
	err = p.db.SelectContext(ctx, &projects, sql, args...)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// QueryProjects returns a list of 0 to count projects that match the specified
// name filter (glob format), along with a paging token.
//
// The pageToken argument, if provided, should be the return value from a prior
// call to this method with the same filter.  It will be decoded to determine
// the next "page" of results.  An invalid page token will result in an error
// being returned.
func (p *PostgresClient) QueryProjects(ctx context.Context, nameFilter string, pageToken string, count int) ([]Project, string, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = decodePageToken(pageToken, "projects:"+nameFilter)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	}
	q := psql.
		Select(columnsProjects...).
		From(tableProjects)
	q = applyNameFilter(q, "name", nameFilter)
	q = q.OrderBy("name")
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	if count > 0 {
		q = q.Limit(uint64(count))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, "", err
	}

	var results []Project
	err = p.db.SelectContext(ctx, &results, sql, args...)
	if err != nil {
		return nil, "", err
	}

	return results, encodePageToken("projects:"+nameFilter, len(results), offset, count), nil
}

// SaveManifest upserts a manifest for the specified project and replaces all
// of its declarations with decls.  Packages referenced by the declarations
// are created on first sight.
func (p *PostgresClient) SaveManifest(ctx context.Context, projectID int32, path, revision string, decls []Declaration) (manifestID int32, err error) {
	if projectID == 0 {
		return 0, fmt.Errorf("projectID must be provided")
	}
	if path == "" {
		return 0, fmt.Errorf("the manifest path must be provided")
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting database transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cmd, args, err := psql.
		Insert(tableManifests).
		Columns("project_id", "path", "revision", "ingested_at").
		Values(projectID, path, revision, sq.Expr("now()")).
		Suffix(`ON CONFLICT (project_id, path) DO UPDATE SET revision = ?, ingested_at = now() RETURNING id`, revision).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing database command: %w", err)
	}
	if err = tx.QueryRowContext(ctx, cmd, args...).Scan(&manifestID); err != nil {
		return 0, fmt.Errorf("error upserting manifest %q: %w", path, err)
	}

	// ingest replaces, never merges, the manifest's declarations
	cmd, args, err = psql.Delete(tableDeclarations).Where(sq.Eq{"manifest_id": manifestID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing database command: %w", err)
	}
	if _, err = tx.ExecContext(ctx, cmd, args...); err != nil {
		return 0, fmt.Errorf("error clearing prior declarations for manifest %q: %w", path, err)
	}

	for i, d := range decls {
		var packageID sql.NullInt32
		if d.Package != "" {
			id, perr := upsertPackage(ctx, tx, d.Package)
			if perr != nil {
				return 0, fmt.Errorf("error saving package for declarations[%d] (%s): %w", i, d.Package, perr)
			}
			packageID = sql.NullInt32{Int32: id, Valid: true}
		}
		cmd, args, err = psql.
			Insert(tableDeclarations).
			Columns("manifest_id", "package_id", "written_name", "raw", "constraint_text", "pinned_version", "extras", "vcs_url", "vcs_ref", "line").
			Values(manifestID, packageID, d.WrittenName, d.Raw, d.Constraint, d.PinnedVersion, d.Extras, d.VCSURL, d.VCSRef, d.Line).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("error constructing SQL operation for declarations[%d] (%s): %w", i, d.Raw, err)
		}
		if _, err = tx.ExecContext(ctx, cmd, args...); err != nil {
			return 0, fmt.Errorf("error executing database operation for declarations[%d] (%s): %w", i, d.Raw, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing database transaction: %w", err)
	}
	p.log.Debug("saved manifest", "projectID", projectID, "path", path, "declarations", len(decls))
	return manifestID, nil
}

// upsertPackage inserts a package row if needed and returns its ID.
func upsertPackage(ctx context.Context, tx *sqlx.Tx, name string) (int32, error) {
	cmd, args, err := psql.
		Insert(tablePackages).
		Columns("name").
		Values(name).
		Suffix(`ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`).
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int32
	if err := tx.QueryRowContext(ctx, cmd, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetManifests retrieves all known manifests for a given project.  The
// provided key can be either a project name or an integer project ID.
func (p *PostgresClient) GetManifests(ctx context.Context, project string) ([]Manifest, error) {
	if project == "" {
		return nil, fmt.Errorf("project must be provided")
	}
	q := psql.
		Select("m.id", "m.project_id", "m.path", "m.revision", "m.ingested_at").
		From(tableManifests + " m")
	if ival, parseErr := strconv.ParseInt(project, 10, 32); parseErr == nil {
		q = q.Where(sq.Eq{"m.project_id": ival})
	} else {
		q = q.
			Join(tableProjects + " p ON (p.id = m.project_id)").
			Where(sq.Eq{"p.name": project})
	}
	sql, args, err := q.OrderBy("m.path").ToSql()
	if err != nil {
		return nil, err
	}

	var manifests []Manifest
	err = p.db.SelectContext(ctx, &manifests, sql, args...)
	if err != nil {
		return nil, err
	}
	return manifests, nil
}

// QueryPackages returns a list of 0 to count packages that match the specified
// name filter (glob format), along with a paging token.
func (p *PostgresClient) QueryPackages(ctx context.Context, nameFilter string, pageToken string, count int) ([]Package, string, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = decodePageToken(pageToken, "packages:"+nameFilter)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	}
	q := psql.
		Select("id", "name").
		From(tablePackages)
	q = applyNameFilter(q, "name", nameFilter)
	q = q.OrderBy("name")
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	if count > 0 {
		q = q.Limit(uint64(count))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, "", err
	}

	var results []Package
	err = p.db.SelectContext(ctx, &results, sql, args...)
	if err != nil {
		return nil, "", err
	}

	return results, encodePageToken("packages:"+nameFilter, len(results), offset, count), nil
}

// GetDeclarations retrieves every declaration of the given package across all
// tracked projects, ordered by project name then highest pinned version first.
func (p *PostgresClient) GetDeclarations(ctx context.Context, pkg string, pageToken string, count int) ([]DeclarationDetail, string, error) {
	pageTokenKey := "declarations:" + pkg
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = decodePageToken(pageToken, pageTokenKey)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
	}
	if pkg == "" {
		return nil, "", fmt.Errorf("package must not be blank")
	}

	q := psql.
		Select(columnsDeclarationDetails...).
		From(tableDeclarations + " d").
		Join(tablePackages + " pkg ON (pkg.id = d.package_id)").
		Join(tableManifests + " m ON (m.id = d.manifest_id)").
		Join(tableProjects + " p ON (p.id = m.project_id)").
		Where(sq.Eq{"pkg.name": pkg}).
		OrderBy("p.name", "d.pinned_version DESC NULLS LAST", "d.line")
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	if count > 0 {
		q = q.Limit(uint64(count))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, "", err
	}
	p.log.Debug("GetDeclarations()", "sql", sql, "args", args)
	var decls []DeclarationDetail
	err = p.db.SelectContext(ctx, &decls, sql, args...)
	if err != nil {
		return nil, "", err
	}

	return decls, encodePageToken(pageTokenKey, len(decls), offset, count), nil
}

// GetConflicts returns, for each manifest of the given project, the packages
// declared more than once along with each offending declaration.
func (p *PostgresClient) GetConflicts(ctx context.Context, project string) ([]Conflict, error) {
	if project == "" {
		return nil, fmt.Errorf("project must not be blank")
	}

	q := psql.
		Select(columnsDeclarationDetails...).
		Prefix(`WITH dupes AS (
			SELECT d.manifest_id, d.package_id
			FROM declaration d
			WHERE d.package_id IS NOT NULL
			GROUP BY d.manifest_id, d.package_id
			HAVING count(*) > 1
		)`).
		From(tableDeclarations + " d").
		Join("dupes ON (dupes.manifest_id = d.manifest_id AND dupes.package_id = d.package_id)").
		Join(tablePackages + " pkg ON (pkg.id = d.package_id)").
		Join(tableManifests + " m ON (m.id = d.manifest_id)").
		Join(tableProjects + " p ON (p.id = m.project_id)").
		Where(sq.Eq{"p.name": project}).
		OrderBy("m.path", "pkg.name", "d.line")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var decls []DeclarationDetail
	err = p.db.SelectContext(ctx, &decls, sql, args...)
	if err != nil {
		return nil, err
	}

	// fold the flat rows into one Conflict per manifest/package pair,
	// preserving the query's ordering
	var conflicts []Conflict
	for _, d := range decls {
		n := len(conflicts)
		if n == 0 || conflicts[n-1].Package != d.Package || conflicts[n-1].ManifestPath != d.ManifestPath {
			conflicts = append(conflicts, Conflict{
				Package:      d.Package,
				ManifestPath: d.ManifestPath,
			})
			n++
		}
		conflicts[n-1].Declarations = append(conflicts[n-1].Declarations, d)
	}
	return conflicts, nil
}

func applyNameFilter(q sq.SelectBuilder, column, nameFilter string) sq.SelectBuilder {
	if nameFilter == "" {
		return q
	}
	// translate glob ? and * wildcards to SQL equivalents
	where := strings.Map(func(c rune) rune {
		switch c {
		case '?':
			return '_'
		case '*':
			return '%'
		default:
			return c
		}
	}, nameFilter)
	// treat a filter with no wildards as a "contains" substring match
	if !strings.ContainsAny(where, "%_") {
		where = "%" + where + "%"
	}
	return q.Where(sq.Like{column: where})
}
