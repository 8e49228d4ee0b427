package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

// StatusInput addresses one artifact by exactly one of Ref or PublicID.
type StatusInput struct {
	Ref      string
	PublicID string
}

// Status returns the owner view of one artifact: status, version, error and
// access telemetry. It never counts as an access.
func Status(ctx context.Context, database *sql.DB, input StatusInput) (*artifact.Summary, error) {
	ref := strings.TrimSpace(input.Ref)
	publicID := strings.TrimSpace(input.PublicID)

	if ref != "" && publicID != "" {
		return nil, errors.NewInvalidRequest("specify either ref or public_id, not both")
	}

	var (
		a   *artifact.Artifact
		err error
	)
	switch {
	case publicID != "":
		a, err = db.GetByPublicID(ctx, database, publicID)
	case ref != "":
		a, err = db.GetByRef(ctx, database, ref)
	default:
		return nil, errors.NewInvalidRequest("must specify either ref or public_id")
	}
	if err != nil {
		return nil, err
	}

	s := a.ToSummary()
	return &s, nil
}

// ListInput contains parameters for the List operation.
type ListInput struct {
	PublicOnly bool
	Status     string // optional: building, success, failed
	Limit      int    // default: 20, max: 100
	Offset     int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []artifact.Summary `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// List returns artifact summaries, most recently updated first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	status := artifact.BuildStatus(strings.TrimSpace(input.Status))
	if status != "" && !status.Valid() {
		return nil, errors.NewInvalidRequest("status must be one of: building, success, failed")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	items, total, err := db.List(ctx, database, db.ListFilter{
		PublicOnly: input.PublicOnly,
		Status:     status,
	}, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
