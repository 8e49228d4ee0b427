package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/config"
	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/logging"
	"github.com/cogbench/cogbench/internal/mirror"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// MaxRefLen bounds internal references.
const MaxRefLen = 200

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env is what mutating operations share: the store, configuration, logger,
// mirror and the per-ref locks that serialise builds of one artifact.
type Env struct {
	DB         *sql.DB
	Config     *config.Config
	Logger     *zap.Logger
	Mirror     mirror.Mirror
	ExportsDir string

	locks refLocks
}

// NewEnv returns an Env. Nil logger and mirror are replaced with no-ops, a
// nil config with DefaultConfig.
func NewEnv(database *sql.DB, cfg *config.Config, logger *zap.Logger, m mirror.Mirror) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if m == nil {
		m = mirror.Nop{}
	}
	return &Env{
		DB:     database,
		Config: cfg,
		Logger: logging.OrNop(logger),
		Mirror: m,
	}
}

// validateRef trims ref and checks it is usable as an internal reference.
func validateRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.NewInvalidRequest("ref is required")
	}
	if len(ref) > MaxRefLen {
		return "", errors.NewInvalidRequest(fmt.Sprintf("ref must be at most %d bytes", MaxRefLen))
	}
	for _, r := range ref {
		if unicode.IsControl(r) {
			return "", errors.NewInvalidRequest("ref must not contain control characters")
		}
	}
	return ref, nil
}

// validatePublicID checks publicID looks like a ULID. Any other string can
// never match, so callers map failures to NOT_FOUND.
func validatePublicID(publicID string) bool {
	_, err := ulid.ParseStrict(publicID)
	return err == nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// mirrorPut uploads a servable artifact. Failures are logged, never returned.
func (e *Env) mirrorPut(ctx context.Context, a *artifact.Artifact) {
	if !a.Servable() {
		return
	}
	if err := e.Mirror.Put(ctx, a.PublicID, a.HTMLContent); err != nil {
		e.Logger.Error("mirror upload failed",
			zap.String("ref", a.InternalRef),
			zap.String("public_id", a.PublicID),
			zap.Error(err))
	}
}

// mirrorDelete removes an artifact from the mirror. Failures are logged, never returned.
func (e *Env) mirrorDelete(ctx context.Context, a *artifact.Artifact) {
	if err := e.Mirror.Delete(ctx, a.PublicID); err != nil {
		e.Logger.Error("mirror delete failed",
			zap.String("ref", a.InternalRef),
			zap.String("public_id", a.PublicID),
			zap.Error(err))
	}
}
