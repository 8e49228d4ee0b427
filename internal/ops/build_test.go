package ops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cogbench/cogbench/internal/artifact"
	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

func TestBuild_Success(t *testing.T) {
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

	if out.BuildStatus != artifact.StatusSuccess || out.BuildError != nil {
		t.Errorf("status = %s, error = %v", out.BuildStatus, out.BuildError)
	}
	if out.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", out.Version)
	}
	if out.IsPublic {
		t.Error("new artifact should be private")
	}
	if !validatePublicID(out.PublicID) {
		t.Errorf("PublicID %q is not a ULID", out.PublicID)
	}

	a, err := db.GetByRef(ctx, env.DB, "exp-1")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if !strings.Contains(a.HTMLContent, "<title>Stroop Demo</title>") {
		t.Error("document title missing")
	}
	if !strings.Contains(a.JSContent, "function StroopDemo(") || a.CSSContent == "" {
		t.Error("fragments not stored")
	}
	if a.Description != "Name the ink colour." {
		t.Errorf("Description = %q", a.Description)
	}
}

func TestBuild_DefaultsTitleToRef(t *testing.T) {
	env, _ := setupEnv(t)
	if _, err := Build(context.Background(), env, BuildInput{Ref: "exp-7", SourceText: stroopV1}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	a, err := db.GetByRef(context.Background(), env.DB, "exp-7")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if a.Title != "exp-7" {
		t.Errorf("Title = %q, want ref", a.Title)
	}
}

func TestBuild_FailureIsRecorded(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()

	out, err := Build(ctx, env, BuildInput{Ref: "exp-bad", Title: "Broken", SourceText: noComponent})
	if err != nil {
		t.Fatalf("failed build should not return an error: %v", err)
	}
	if out.BuildStatus != artifact.StatusFailed {
		t.Errorf("status = %s, want failed", out.BuildStatus)
	}
	if out.BuildError == nil || !strings.Contains(*out.BuildError, string(errors.ErrSourceShape)) {
		t.Errorf("BuildError = %v, want SOURCE_SHAPE message", out.BuildError)
	}

	a, err := db.GetByPublicID(ctx, env.DB, out.PublicID)
	if err != nil {
		t.Fatalf("failed artifact should be addressable: %v", err)
	}
	if a.HTMLContent != "" || a.CSSContent != "" || a.JSContent != "" {
		t.Error("failed artifact should have empty content")
	}
}

func TestBuild_EmptySourceIsBuildFailure(t *testing.T) {
	env, _ := setupEnv(t)
	out, err := Build(context.Background(), env, BuildInput{Ref: "exp-empty", SourceText: ""})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.BuildStatus != artifact.StatusFailed {
		t.Errorf("status = %s, want failed", out.BuildStatus)
	}
}

func TestBuild_ExistingRefConflicts(t *testing.T) {
	env, _ := setupEnv(t)
	first := mustBuild(t, env, "exp-1", stroopV1)

	_, err := Build(context.Background(), env, BuildInput{Ref: "exp-1", SourceText: stroopV2})
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("Build on existing ref should return CONFLICT, got: %v", err)
	}

	a, err := db.GetByRef(context.Background(), env.DB, "exp-1")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if a.PublicID != first.PublicID || a.Version != artifact.Baseline {
		t.Error("conflicting build must not touch the artifact")
	}
}

func TestBuild_TooLarge(t *testing.T) {
	env, _ := setupEnv(t)
	env.Config.SourceMaxChars = 20

	_, err := Build(context.Background(), env, BuildInput{Ref: "exp-1", SourceText: stroopV1})
	if !errors.Is(err, errors.ErrSourceTooLarge) {
		t.Errorf("expected SOURCE_TOO_LARGE, got: %v", err)
	}
	if _, err := db.GetByRef(context.Background(), env.DB, "exp-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("oversize source must not create an artifact")
	}
}

func TestBuild_InvalidRef(t *testing.T) {
	env, _ := setupEnv(t)
	_, err := Build(context.Background(), env, BuildInput{Ref: "  ", SourceText: stroopV1})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got: %v", err)
	}
}

func TestBuild_LintWarnings(t *testing.T) {
	env, _ := setupEnv(t)
	src := `export default function Task() {
  const ref = useRef(null);
  return Panel({}, "x");
}`
	out, err := Build(context.Background(), env, BuildInput{Ref: "exp-1", SourceText: src})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if out.BuildStatus != artifact.StatusSuccess {
		t.Errorf("warnings must not fail the build: %s", out.BuildStatus)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "useRef") {
		t.Errorf("Warnings = %v", out.Warnings)
	}
}

func TestRebuild_StableAddressingAndMonotonicVersion(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	first := mustBuild(t, env, "exp-1", stroopV1)

	const n = 5
	prev := artifact.Baseline
	for i := 1; i <= n; i++ {
		src := stroopV1
		if i%2 == 1 {
			src = stroopV2
		}
		out, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", Title: "Stroop Demo", SourceText: src})
		if err != nil {
			t.Fatalf("Rebuild %d failed: %v", i, err)
		}
		if out.PublicID != first.PublicID {
			t.Fatalf("PublicID changed on rebuild %d", i)
		}
		want := prev.NextPatch()
		if out.Version != want.String() {
			t.Errorf("rebuild %d: version %s after %s, want %s", i, out.Version, prev, want)
		}
		prev = want
	}
}

func TestRebuild_CreatesWhenMissing(t *testing.T) {
	env, _ := setupEnv(t)
	out, err := Rebuild(context.Background(), env, BuildInput{Ref: "exp-new", SourceText: stroopV1})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if out.Version != "1.0.0" || out.BuildStatus != artifact.StatusSuccess {
		t.Errorf("got %s %s, want 1.0.0 success", out.Version, out.BuildStatus)
	}
}

func TestRebuild_FailureCreatesWhenMissing(t *testing.T) {
	env, _ := setupEnv(t)
	out, err := Rebuild(context.Background(), env, BuildInput{Ref: "exp-new", SourceText: noComponent})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if out.BuildStatus != artifact.StatusFailed || out.PublicID == "" {
		t.Errorf("got %+v", out)
	}
}

func TestRebuild_FailureKeepsVersionAndIdentity(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	first := mustBuild(t, env, "exp-1", stroopV1)

	if _, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: stroopV2}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	failed, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: noComponent})
	if err != nil {
		t.Fatalf("failed rebuild should not return an error: %v", err)
	}
	if failed.BuildStatus != artifact.StatusFailed || failed.Version != "1.0.1" || failed.PublicID != first.PublicID {
		t.Errorf("failed rebuild = %+v", failed)
	}

	a, err := db.GetByRef(ctx, env.DB, "exp-1")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if a.HTMLContent != "" || a.BuildError == nil {
		t.Error("failed rebuild should clear content and record the error")
	}

	fixed, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: stroopV1})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if fixed.BuildStatus != artifact.StatusSuccess || fixed.BuildError != nil || fixed.Version != "1.0.2" {
		t.Errorf("recovered rebuild = %+v", fixed)
	}
}

func TestRebuild_ConcurrentNoLostVersions(t *testing.T) {
	env, _ := setupEnv(t)
	mustBuild(t, env, "exp-1", stroopV1)

	const workers = 12
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Rebuild(context.Background(), env, BuildInput{
				Ref:        "exp-1",
				Title:      fmt.Sprintf("worker %d", i),
				SourceText: stroopV2,
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Rebuild failed: %v", err)
	}

	s, err := Status(context.Background(), env.DB, StatusInput{Ref: "exp-1"})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if s.Version != fmt.Sprintf("1.0.%d", workers) {
		t.Errorf("Version = %s, want 1.0.%d", s.Version, workers)
	}
}

func TestRebuild_MirrorsPublicArtifact(t *testing.T) {
	env, m := setupEnv(t)
	ctx := context.Background()
	out := mustBuild(t, env, "exp-1", stroopV1)

	if _, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: stroopV2}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(m.puts) != 0 {
		t.Error("private artifact must not be mirrored")
	}

	if _, err := Publish(ctx, env, PublishInput{Ref: "exp-1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", Title: "Renamed", SourceText: stroopV1}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if !strings.Contains(m.puts[out.PublicID], "<title>Renamed</title>") {
		t.Error("rebuild of a public artifact should re-upload the document")
	}

	if _, err := Rebuild(ctx, env, BuildInput{Ref: "exp-1", SourceText: noComponent}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if _, ok := m.puts[out.PublicID]; ok {
		t.Error("failed rebuild of a public artifact should remove the mirrored document")
	}
}
