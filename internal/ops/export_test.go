package ops

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cogbench/cogbench/internal/db"
	"github.com/cogbench/cogbench/internal/errors"
)

func TestExport_DefaultPath(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	mustBuild(t, env, "exp/1", stroopV1)

	out, err := Export(ctx, env, ExportInput{Ref: "exp/1"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	want := filepath.Join(env.ExportsDir, "exp-1-1.0.0.html")
	if out.Path != want {
		t.Errorf("Path = %q, want %q", out.Path, want)
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	a, err := db.GetByRef(ctx, env.DB, "exp/1")
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if string(data) != a.HTMLContent || out.Bytes != len(data) {
		t.Error("exported file differs from stored document")
	}
	if a.AccessCount != 0 {
		t.Error("export must not be counted")
	}
}

func TestExport_ExplicitPathOverwrites(t *testing.T) {
	env, _ := setupEnv(t)
	mustBuild(t, env, "exp-1", stroopV1)

	path := filepath.Join(t.TempDir(), "stroop.html")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Export(context.Background(), env, ExportInput{Ref: "exp-1", Path: path}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) == "old" {
		t.Error("export did not replace the existing file")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestExport_FailedBuild(t *testing.T) {
	env, _ := setupEnv(t)
	mustBuild(t, env, "exp-1", noComponent)

	_, err := Export(context.Background(), env, ExportInput{Ref: "exp-1"})
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("expected CONFLICT, got: %v", err)
	}
}

func TestExport_NotFound(t *testing.T) {
	env, _ := setupEnv(t)
	_, err := Export(context.Background(), env, ExportInput{Ref: "missing"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got: %v", err)
	}
}

func TestValidatePath_Rejections(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"parent traversal", "../doc.html"},
		{"mid-path traversal", "/tmp/../etc/doc.html"},
		{"wrong extension", filepath.Join(dir, "doc.jsonl")},
		{"no extension", filepath.Join(dir, "doc")},
		{"directory", dir + ".html"},
	}
	if err := os.Mkdir(dir+".html", 0700); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(dir + ".html") })

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidatePath_Accepts(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{filepath.Join(dir, "a.html"), filepath.Join(dir, "b.HTM")} {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v", p, err)
		}
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.html")
	link := filepath.Join(dir, "link.html")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(link); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("symlink accepted: %v", err)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"exp-1", "exp-1"},
		{"a/b\\c", "a-b-c"},
		{"../../etc", "etc"},
		{"\x00\x01", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDocument(t *testing.T) {
	env, _ := setupEnv(t)
	ctx := context.Background()
	mustBuild(t, env, "exp-1", stroopV1)

	var buf strings.Builder
	out, err := WriteDocument(ctx, env.DB, "exp-1", &buf)
	if err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	if out.Bytes != buf.Len() || out.Version != "1.0.0" || out.Path != "" {
		t.Errorf("WriteDocument = %+v", out)
	}
	if !strings.HasPrefix(buf.String(), "<!doctype html>") {
		t.Error("document not written")
	}

	mustBuild(t, env, "exp-bad", noComponent)
	if _, err := WriteDocument(ctx, env.DB, "exp-bad", &buf); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("expected CONFLICT, got: %v", err)
	}
}
