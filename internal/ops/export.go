package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Ref  string // required
	Path string // optional, default: <exports>/<ref>-<version>.html
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
	Version string `json:"version"`
}

// Export writes the assembled document for ref to a standalone .html file.
// The artifact must have a successful build. No access is counted.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	ref, err := validateRef(input.Ref)
	if err != nil {
		return nil, err
	}

	a, err := servableByRef(ctx, env.DB, ref)
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		if env.ExportsDir == "" {
			return nil, errors.NewInvalidRequest("path is required")
		}
		name := fmt.Sprintf("%s-%s.html", SanitizeForFilename(ref), a.Version)
		exportPath = filepath.Join(env.ExportsDir, name)
	}
	if err := ValidatePath(exportPath); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	n, err := file.WriteString(a.HTMLContent)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		file = nil
		return nil, errors.NewInternal(err)
	}
	file = nil

	if err := os.Rename(tempPath, exportPath); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export file: %w", err))
	}
	success = true

	env.Logger.Info("document exported",
		zap.String("ref", ref),
		zap.String("path", exportPath),
		zap.Int("bytes", n))

	return &ExportOutput{
		Path:    exportPath,
		Bytes:   n,
		Version: a.Version.String(),
	}, nil
}

// WriteDocument copies the assembled document for ref to w. Like Export it
// requires a successful build and is not counted as an access.
func WriteDocument(ctx context.Context, database *sql.DB, ref string, w io.Writer) (*ExportOutput, error) {
	ref, err := validateRef(ref)
	if err != nil {
		return nil, err
	}
	a, err := servableByRef(ctx, database, ref)
	if err != nil {
		return nil, err
	}
	n, err := io.WriteString(w, a.HTMLContent)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ExportOutput{Bytes: n, Version: a.Version.String()}, nil
}

func servableByRef(ctx context.Context, database *sql.DB, ref string) (*artifact.Artifact, error) {
	a, err := db.GetByRef(ctx, database, ref)
	if err != nil {
		return nil, err
	}
	if !a.Servable() {
		return nil, errors.NewConflict(fmt.Sprintf("artifact %q has no document: last build %s", ref, a.BuildStatus))
	}
	return a, nil
}
