package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/bundle"
	"github.com/cogbench/cogbench/internal/config"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/source"
)

// BuildInput contains parameters for the Build and Rebuild operations.
type BuildInput struct {
	Ref         string // required
	Title       string // default: Ref
	Description string
	SourceText  string
}

// BuildOutput contains the result of a build. A failed build is a normal
// result with BuildStatus failed, not an error.
type BuildOutput struct {
	InternalRef string               `json:"internal_ref"`
	PublicID    string               `json:"public_id"`
	Version     string               `json:"version"`
	BuildStatus artifact.BuildStatus `json:"build_status"`
	BuildError  *string              `json:"build_error,omitempty"`
	IsPublic    bool                 `json:"is_public"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// Build compiles source for a ref that has no artifact yet. Returns CONFLICT
// if one exists; use Rebuild to replace it.
func Build(ctx context.Context, env *Env, input BuildInput) (*BuildOutput, error) {
	return build(ctx, env, input, false)
}

// Rebuild compiles source for ref, creating the artifact if missing or
// replacing its content and advancing its patch version otherwise.
func Rebuild(ctx context.Context, env *Env, input BuildInput) (*BuildOutput, error) {
	return build(ctx, env, input, true)
}

func build(ctx context.Context, env *Env, input BuildInput, replace bool) (*BuildOutput, error) {
	ref, err := validateRef(input.Ref)
	if err != nil {
		return nil, err
	}
	unit := source.Unit{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		SourceText:  input.SourceText,
	}
	if unit.Title == "" {
		unit.Title = ref
	}

	lint := source.Lint(unit.SourceText, env.Config.SourceMaxChars)
	if lint.TooLarge {
		return nil, errors.NewSourceTooLarge(lint.MaxChars, lint.ActualChars)
	}

	unlock := env.locks.lock(ref)
	defer unlock()

	// Used only if this build creates the artifact
	publicID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	b, err := compile(unit, env.Config)
	if err != nil {
		if !errors.IsBuildFailure(err) {
			return nil, err
		}
		a, recErr := recordFailure(ctx, env, ref, publicID, unit, err, replace)
		if recErr != nil {
			return nil, recErr
		}
		env.Logger.Warn("build failed",
			zap.String("ref", ref),
			zap.String("public_id", a.PublicID),
			zap.String("version", a.Version.String()),
			zap.Error(err))
		return newBuildOutput(a, lint.Warnings), nil
	}

	content := db.Content{
		Title:       unit.Title,
		Description: unit.Description,
		HTML:        b.HTML,
		CSS:         b.CSS,
		JS:          b.JS,
	}
	var a *artifact.Artifact
	if replace {
		a, err = db.Rebuild(ctx, env.DB, ref, publicID, content)
	} else {
		a, err = db.Create(ctx, env.DB, ref, publicID, content)
	}
	if err != nil {
		return nil, err
	}

	if a.IsPublic {
		env.mirrorPut(ctx, a)
	}
	env.Logger.Info("build succeeded",
		zap.String("ref", ref),
		zap.String("public_id", a.PublicID),
		zap.String("version", a.Version.String()),
		zap.Int("html_bytes", len(a.HTMLContent)),
		zap.Int("warnings", len(lint.Warnings)))

	return newBuildOutput(a, lint.Warnings), nil
}

// compile runs the pipeline: normalize, then assemble.
func compile(unit source.Unit, cfg *config.Config) (*bundle.Bundle, error) {
	n, err := source.Normalize(unit.SourceText)
	if err != nil {
		return nil, err
	}
	return bundle.Assemble(unit, n, bundle.Options{CDNStylesheet: cfg.CDNStylesheet})
}

// recordFailure stores a failed build. On replace an existing artifact is
// marked failed in place; otherwise, or when none exists, a failed artifact
// is created. Storage errors here propagate.
func recordFailure(ctx context.Context, env *Env, ref, publicID string, unit source.Unit, cause error, replace bool) (*artifact.Artifact, error) {
	msg := cause.Error()
	if replace {
		a, err := db.MarkFailed(ctx, env.DB, ref, unit.Title, unit.Description, msg)
		if err == nil {
			if a.IsPublic {
				env.mirrorDelete(ctx, a)
			}
			return a, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}
	return db.CreateFailed(ctx, env.DB, ref, publicID, unit.Title, unit.Description, msg)
}

func newBuildOutput(a *artifact.Artifact, warnings []string) *BuildOutput {
	return &BuildOutput{
		InternalRef: a.InternalRef,
		PublicID:    a.PublicID,
		Version:     a.Version.String(),
		BuildStatus: a.BuildStatus,
		BuildError:  a.BuildError,
		IsPublic:    a.IsPublic,
		Warnings:    warnings,
	}
}
