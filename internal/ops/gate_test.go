package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

func TestDocument_CountsAccess(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	out := mustBuild(t, env, "exp-1", stroopV1)
	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	const k = 3
	for i := 0; i < k; i++ {
		doc, err := Document(ctx, env.DB, out.PublicID)
		if err != nil {
			t.Fatalf("Document failed: %v", err)
		}
		if !strings.HasPrefix(doc.HTML, "<!doctype html>") || doc.Version != "1.0.0" {
			t.Errorf("unexpected document: version %s", doc.Version)
		}
	}

	a, err := db.GetByRef(ctx, env.DB, "exp-1")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if a.AccessCount != k {
		t.Errorf("AccessCount = %d, want %d", a.AccessCount, k)
	}
	if a.LastAccessedAt == nil {
		t.Error("LastAccessedAt not set")
	}
}

func TestDocument_PrivacyIndistinguishable(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	private := mustBuild(t, env, "exp-private", stroopV1)
	failed := mustBuild(t, env, "exp-failed", noComponent)
	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-failed"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	unknown, err := generateULID()
	if err != nil {
		t.Fatal(err)
	}

	shape := func(id string) (errors.ErrorCode, int, string) {
		_, err := Document(ctx, env.DB, id)
		cErr, ok := err.(*errors.CogError)
		if !ok {
			t.Fatalf("Document(%s) error = %v, want *CogError", id, err)
		}
		return cErr.Code, cErr.Status, strings.Replace(cErr.Message, id, "<id>", 1)
	}

	wantCode, wantStatus, wantMsg := shape(unknown)
	if wantCode != errors.ErrNotFound || wantStatus != 404 {
		t.Fatalf("unknown id = %s/%d", wantCode, wantStatus)
	}
	for _, id := range []string{private.PublicID, failed.PublicID, "garbage"} {
		code, status, msg := shape(id)
		if code != wantCode || status != wantStatus || msg != wantMsg {
			t.Errorf("Document(%s) = %s/%d/%q, want %s/%d/%q", id, code, status, msg, wantCode, wantStatus, wantMsg)
		}
	}

	if accessCount(t, env.DB, "exp-private") != 0 || accessCount(t, env.DB, "exp-failed") != 0 {
		t.Error("private and failed artifacts must not be counted")
	}
}

func TestPreview_AnyVisibilityNotCounted(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	out := mustBuild(t, env, "exp-1", stroopV1)

	p, err := Preview(ctx, env.DB, out.PublicID)
	if err != nil {
		t.Fatalf("Preview of private artifact failed: %v", err)
	}
	if p.IsPublic || p.HTML == "" || p.BuildStatus != artifact.StatusSuccess {
		t.Errorf("Preview = %+v", p)
	}

	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, err := Preview(ctx, env.DB, out.PublicID); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if accessCount(t, env.DB, "exp-1") != 0 {
		t.Error("preview must never be counted")
	}
}

func TestPreview_FailedBuild(t *testing.T) {
	env, _ := setupEnv(t)
	out := mustBuild(t, env, "exp-1", noComponent)

	p, err := Preview(context.Background(), env.DB, out.PublicID)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if p.BuildStatus != artifact.StatusFailed || p.BuildError == "" || p.HTML != "" {
		t.Errorf("Preview = %+v", p)
	}
}

func TestPreview_Unknown(t *testing.T) {
	env, _ := setupEnv(t)
	_, err := Preview(context.Background(), env.DB, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	out, err := Build(ctx, env, BuildInput{
		Ref:         "exp-1",
		Title:       "Stroop Demo",
		Description: "Name the ink colour.",
		SourceText:  stroopV1,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := Metadata(ctx, env.DB, out.PublicID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("private metadata should be NOT_FOUND, got: %v", err)
	}

	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, err := Document(ctx, env.DB, out.PublicID); err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	meta, err := Metadata(ctx, env.DB, out.PublicID)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	want := MetadataView{
		PublicID:    out.PublicID,
		Title:       "Stroop Demo",
		Description: "Name the ink colour.",
		Version:     "1.0.0",
		AccessCount: 1,
	}
	if *meta != want {
		t.Errorf("Metadata = %+v, want %+v", *meta, want)
	}
	if accessCount(t, env.DB, "exp-1") != 1 {
		t.Error("metadata must not be counted")
	}
}

func TestMetadata_FailedBuildMatchesDocument(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	mustBuild(t, env, "exp-1", stroopV1)
	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	failed, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: noComponent})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if failed.BuildStatus != artifact.StatusFailed || !failed.IsPublic {
		t.Fatalf("want a public failed artifact, got %+v", failed)
	}

	if _, err := Document(ctx, env.DB, failed.PublicID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Document of failed build: %v", err)
	}
	if _, err := Metadata(ctx, env.DB, failed.PublicID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Metadata of failed build should be NOT_FOUND, got: %v", err)
	}
}
