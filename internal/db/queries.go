package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/errors"
)

// Content is the output of one successful build.
type Content struct {
	Title       string
	Description string
	HTML        string
	CSS         string
	JS          string
}

const artifactColumns = `public_id, internal_ref, title, description,
	html_content, css_content, js_content,
	version_major, version_minor, version_patch,
	build_status, build_error, is_public, access_count, last_accessed_at,
	created_at, updated_at`

// Create inserts a successfully built artifact at the baseline version.
// Returns CONFLICT if an artifact already exists for ref.
func Create(ctx context.Context, db *sql.DB, ref, publicID string, c Content) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO artifacts (
			public_id, internal_ref, title, description,
			html_content, css_content, js_content,
			version_major, version_minor, version_patch,
			build_status, build_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'success', NULL, ?, ?)
		RETURNING ` + artifactColumns

	v := artifact.Baseline
	row := db.QueryRowContext(ctx, query,
		publicID, ref, c.Title, c.Description,
		c.HTML, c.CSS, c.JS,
		v.Major, v.Minor, v.Patch,
		now, now,
	)
	a, err := scanArtifact(row)
	if err != nil {
		return nil, insertError(ref, err)
	}
	return a, nil
}

// CreateFailed inserts an artifact whose first build failed: empty content,
// status failed, errMsg recorded. It is still addressable by its public id.
func CreateFailed(ctx context.Context, db *sql.DB, ref, publicID, title, description, errMsg string) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO artifacts (
			public_id, internal_ref, title, description,
			version_major, version_minor, version_patch,
			build_status, build_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 'failed', ?, ?, ?)
		RETURNING ` + artifactColumns

	v := artifact.Baseline
	row := db.QueryRowContext(ctx, query,
		publicID, ref, title, description,
		v.Major, v.Minor, v.Patch,
		errMsg, now, now,
	)
	a, err := scanArtifact(row)
	if err != nil {
		return nil, insertError(ref, err)
	}
	return a, nil
}

// maxRebuildAttempts bounds the retry loop in Rebuild. Every lost attempt
// means another writer advanced the version in between.
const maxRebuildAttempts = 64

// Rebuild stores a successful build for ref. A new artifact is created with
// publicID at the baseline version; an existing one keeps its identifiers,
// gets the new content and moves to Version.NextPatch. The update only
// applies if the stored version is still the one that was read, and is retried
// otherwise, so concurrent rebuilds of the same ref cannot lose a version.
func Rebuild(ctx context.Context, db *sql.DB, ref, publicID string, c Content) (*artifact.Artifact, error) {
	for attempt := 0; attempt < maxRebuildAttempts; attempt++ {
		prev, err := GetByRef(ctx, db, ref)
		if errors.Is(err, errors.ErrNotFound) {
			a, err := insertIfAbsent(ctx, db, ref, publicID, c)
			if err != nil {
				return nil, err
			}
			if a != nil {
				return a, nil
			}
			continue // created by a concurrent writer
		}
		if err != nil {
			return nil, err
		}

		a, err := advance(ctx, db, ref, prev.Version, c)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
	}
	return nil, errors.NewPersistence(fmt.Errorf("rebuild %q: version still moving after %d attempts", ref, maxRebuildAttempts))
}

// insertIfAbsent creates ref at the baseline version. It returns nil without
// error when ref already exists.
func insertIfAbsent(ctx context.Context, db *sql.DB, ref, publicID string, c Content) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO artifacts (
			public_id, internal_ref, title, description,
			html_content, css_content, js_content,
			version_major, version_minor, version_patch,
			build_status, build_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'success', NULL, ?, ?)
		ON CONFLICT(internal_ref) DO NOTHING
		RETURNING ` + artifactColumns

	v := artifact.Baseline
	row := db.QueryRowContext(ctx, query,
		publicID, ref, c.Title, c.Description,
		c.HTML, c.CSS, c.JS,
		v.Major, v.Minor, v.Patch,
		now, now,
	)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, insertError(ref, err)
	}
	return a, nil
}

// advance replaces the content of ref and sets its version to
// from.NextPatch, provided the stored version still equals from. It returns
// nil without error when another writer moved the version first.
func advance(ctx context.Context, db *sql.DB, ref string, from artifact.Version, c Content) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	next := from.NextPatch()
	query := `
		UPDATE artifacts SET
			title = ?, description = ?,
			html_content = ?, css_content = ?, js_content = ?,
			version_major = ?, version_minor = ?, version_patch = ?,
			build_status = 'success', build_error = NULL, updated_at = ?
		WHERE internal_ref = ?
			AND version_major = ? AND version_minor = ? AND version_patch = ?
		RETURNING ` + artifactColumns

	row := db.QueryRowContext(ctx, query,
		c.Title, c.Description,
		c.HTML, c.CSS, c.JS,
		next.Major, next.Minor, next.Patch,
		now,
		ref,
		from.Major, from.Minor, from.Patch,
	)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewPersistence(fmt.Errorf("rebuild %q: %w", ref, err))
	}
	return a, nil
}

// MarkFailed records a failed rebuild on an existing artifact: content is
// cleared and the error stored. Version and identifiers are unchanged.
func MarkFailed(ctx context.Context, db *sql.DB, ref, title, description, errMsg string) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		UPDATE artifacts
		SET title = ?, description = ?,
			html_content = '', css_content = '', js_content = '',
			build_status = 'failed', build_error = ?, updated_at = ?
		WHERE internal_ref = ?
		RETURNING ` + artifactColumns

	row := db.QueryRowContext(ctx, query, title, description, errMsg, now, ref)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(ref)
	}
	if err != nil {
		return nil, errors.NewPersistence(fmt.Errorf("mark failed %q: %w", ref, err))
	}
	return a, nil
}

// SetPublic sets the visibility flag of the artifact for ref. Content and
// build status are untouched.
func SetPublic(ctx context.Context, db *sql.DB, ref string, public bool) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		UPDATE artifacts
		SET is_public = ?, updated_at = ?
		WHERE internal_ref = ?
		RETURNING ` + artifactColumns

	row := db.QueryRowContext(ctx, query, public, now, ref)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(ref)
	}
	if err != nil {
		return nil, errors.NewPersistence(fmt.Errorf("set visibility %q: %w", ref, err))
	}
	return a, nil
}

// FetchPublic returns the artifact with publicID if it is public and built
// successfully, counting the access in the same statement. Unknown, private
// and failed artifacts all return the same NOT_FOUND error and are not counted.
func FetchPublic(ctx context.Context, db *sql.DB, publicID string) (*artifact.Artifact, error) {
	now := time.Now().Unix()
	query := `
		UPDATE artifacts
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE public_id = ? AND is_public = 1 AND build_status = 'success'
		RETURNING ` + artifactColumns

	row := db.QueryRowContext(ctx, query, now, publicID)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(publicID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return a, nil
}

// GetByPublicID reads an artifact regardless of visibility. No telemetry.
func GetByPublicID(ctx context.Context, db *sql.DB, publicID string) (*artifact.Artifact, error) {
	row := db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE public_id = ?`, publicID)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(publicID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return a, nil
}

// GetByRef reads the artifact owned by ref. No telemetry.
func GetByRef(ctx context.Context, db *sql.DB, ref string) (*artifact.Artifact, error) {
	row := db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE internal_ref = ?`, ref)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(ref)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return a, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	PublicOnly bool
	Status     artifact.BuildStatus
}

// List returns artifact summaries ordered by most recently updated, plus the
// total number of matches ignoring limit and offset.
func List(ctx context.Context, db *sql.DB, filter ListFilter, limit, offset int) ([]artifact.Summary, int, error) {
	var where []string
	var args []any
	if filter.PublicOnly {
		where = append(where, "is_public = 1")
	}
	if filter.Status != "" {
		where = append(where, "build_status = ?")
		args = append(args, string(filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT public_id, internal_ref, title, description,
			length(CAST(html_content AS BLOB)),
			version_major, version_minor, version_patch,
			build_status, build_error, is_public, access_count, last_accessed_at,
			created_at, updated_at
		FROM artifacts` + clause + `
		ORDER BY updated_at DESC, internal_ref ASC
		LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := []artifact.Summary{}
	for rows.Next() {
		var (
			s          artifact.Summary
			v          artifact.Version
			status     string
			buildError sql.NullString
			lastAccess sql.NullInt64
		)
		if err := rows.Scan(
			&s.PublicID, &s.InternalRef, &s.Title, &s.Description,
			&s.HTMLChars,
			&v.Major, &v.Minor, &v.Patch,
			&status, &buildError, &s.IsPublic, &s.AccessCount, &lastAccess,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.Version = v.String()
		s.BuildStatus = artifact.BuildStatus(status)
		s.BuildError = fromNullString(buildError)
		s.LastAccessedAt = fromNullInt64(lastAccess)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// insertError maps a failed insert to CONFLICT or PERSISTENCE.
func insertError(ref string, err error) error {
	if isUniqueConstraintError(err) {
		return errors.NewConflict(fmt.Sprintf("artifact already exists for ref %q (use rebuild)", ref))
	}
	return errors.NewPersistence(fmt.Errorf("insert %q: %w", ref, err))
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanArtifact scans one row selected with artifactColumns.
func scanArtifact(row rowScanner) (*artifact.Artifact, error) {
	var (
		a          artifact.Artifact
		status     string
		buildError sql.NullString
		lastAccess sql.NullInt64
	)

	err := row.Scan(
		&a.PublicID, &a.InternalRef, &a.Title, &a.Description,
		&a.HTMLContent, &a.CSSContent, &a.JSContent,
		&a.Version.Major, &a.Version.Minor, &a.Version.Patch,
		&status, &buildError, &a.IsPublic, &a.AccessCount, &lastAccess,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.BuildStatus = artifact.BuildStatus(status)
	a.BuildError = fromNullString(buildError)
	a.LastAccessedAt = fromNullInt64(lastAccess)

	return &a, nil
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// fromNullInt64 converts a sql.NullInt64 to *int64.
func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
