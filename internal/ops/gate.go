package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

// DocumentView is the participant-facing document.
type DocumentView struct {
	PublicID string
	Title    string
	Version  string
	HTML     string
}

// Document returns the full document for a public, successfully built
// artifact and counts the access. Unknown, private and failed artifacts all
// yield the same NOT_FOUND error.
func Document(ctx context.Context, database *sql.DB, publicID string) (*DocumentView, error) {
	publicID = strings.TrimSpace(publicID)
	if !validatePublicID(publicID) {
		return nil, errors.NewNotFound(publicID)
	}
	a, err := db.FetchPublic(ctx, database, publicID)
	if err != nil {
		return nil, err
	}
	return &DocumentView{
		PublicID: a.PublicID,
		Title:    a.Title,
		Version:  a.Version.String(),
		HTML:     a.HTMLContent,
	}, nil
}

// PreviewView is the owner-facing document, available regardless of visibility.
type PreviewView struct {
	PublicID    string
	Title       string
	Version     string
	IsPublic    bool
	BuildStatus artifact.BuildStatus
	BuildError  string
	HTML        string
}

// Preview returns the document for any artifact without counting the access.
// For failed builds HTML is empty and BuildError is set.
func Preview(ctx context.Context, database *sql.DB, publicID string) (*PreviewView, error) {
	publicID = strings.TrimSpace(publicID)
	if !validatePublicID(publicID) {
		return nil, errors.NewNotFound(publicID)
	}
	a, err := db.GetByPublicID(ctx, database, publicID)
	if err != nil {
		return nil, err
	}
	v := &PreviewView{
		PublicID:    a.PublicID,
		Title:       a.Title,
		Version:     a.Version.String(),
		IsPublic:    a.IsPublic,
		BuildStatus: a.BuildStatus,
		HTML:        a.HTMLContent,
	}
	if a.BuildError != nil {
		v.BuildError = *a.BuildError
	}
	return v, nil
}

// MetadataView is the public description of a published artifact.
type MetadataView struct {
	PublicID    string `json:"public_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
	AccessCount int64  `json:"access_count"`
}

// Metadata returns title, version, access count and description for a public
// artifact. It does not count as an access. Private, failed and unknown ids
// yield the same NOT_FOUND error, matching Document.
func Metadata(ctx context.Context, database *sql.DB, publicID string) (*MetadataView, error) {
	publicID = strings.TrimSpace(publicID)
	if !validatePublicID(publicID) {
		return nil, errors.NewNotFound(publicID)
	}
	a, err := db.GetByPublicID(ctx, database, publicID)
	if err != nil {
		return nil, err
	}
	if !a.IsPublic || !a.Servable() {
		return nil, errors.NewNotFound(publicID)
	}
	return &MetadataView{
		PublicID:    a.PublicID,
		Title:       a.Title,
		Description: a.Description,
		Version:     a.Version.String(),
		AccessCount: a.AccessCount,
	}, nil
}
