package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
)

// PublishInput contains parameters for Publish and Unpublish.
type PublishInput struct {
	Ref string // required
}

// PublishOutput contains the visibility after Publish or Unpublish.
type PublishOutput struct {
	InternalRef string               `json:"internal_ref"`
	PublicID    string               `json:"public_id"`
	IsPublic    bool                 `json:"is_public"`
	BuildStatus artifact.BuildStatus `json:"build_status"`
	Path        string               `json:"path"`
}

// Publish makes the artifact for ref reachable on the public path. A failed
// build may be published; it stays unreachable until a rebuild succeeds.
func Publish(ctx context.Context, env *Env, input PublishInput) (*PublishOutput, error) {
	return setVisibility(ctx, env, input, true)
}

// Unpublish hides the artifact for ref from the public path.
func Unpublish(ctx context.Context, env *Env, input PublishInput) (*PublishOutput, error) {
	return setVisibility(ctx, env, input, false)
}

func setVisibility(ctx context.Context, env *Env, input PublishInput, public bool) (*PublishOutput, error) {
	ref, err := validateRef(input.Ref)
	if err != nil {
		return nil, err
	}

	unlock := env.locks.lock(ref)
	defer unlock()

	a, err := db.SetPublic(ctx, env.DB, ref, public)
	if err != nil {
		return nil, err
	}

	if public {
		env.mirrorPut(ctx, a)
	} else {
		env.mirrorDelete(ctx, a)
	}
	env.Logger.Info("visibility changed",
		zap.String("ref", ref),
		zap.String("public_id", a.PublicID),
		zap.Bool("public", public))

	return &PublishOutput{
		InternalRef: a.InternalRef,
		PublicID:    a.PublicID,
		IsPublic:    a.IsPublic,
		BuildStatus: a.BuildStatus,
		Path:        DocumentPath(a.PublicID),
	}, nil
}

// DocumentPath is the public URL path of a document.
func DocumentPath(publicID string) string {
	return "/e/" + publicID
}
