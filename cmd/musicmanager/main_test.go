// cmd/musicmanager/main_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/valpere/musicmanager/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cc := newCommandContext()
	defer cc.close()

	cmd := newRootCommand(cc)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func quietConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	return writeFile(t, dir, "settings.yaml", "logging:\n  level: error\n"+extra)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "musicmanager dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")

	out, err := execute(t, "--config", cfg, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "built-in") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigValidateRejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "output:\n  mode: publish\n")

	_, err := execute(t, "--config", cfg, "config", "validate")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if apperrors.KindOf(err) != apperrors.KindConfig {
		t.Errorf("KindOf = %v, want config", apperrors.KindOf(err))
	}
}

func TestConfigFields(t *testing.T) {
	out, err := execute(t, "config", "fields")
	if err != nil {
		t.Fatalf("config fields: %v", err)
	}
	for _, want := range []string{"title", "link_1", "listen_count"} {
		if !strings.Contains(out, want) {
			t.Errorf("field %q missing from:\n%s", want, out)
		}
	}
}

func TestParseCommandJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")
	in := writeFile(t, dir, "notes.txt", "title:first link:https://example.com/a\ntitle:second\n")

	out, err := execute(t, "--config", cfg, "parse", "--format", "json", in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d records, want 2:\n%s", len(lines), out)
	}
	var first map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode %q: %v", lines[0], err)
	}
	if first["title"] != "first" || first["link_1"] != "https://example.com/a" {
		t.Errorf("first record = %v", first)
	}
}

func TestParseCommandNeedsInput(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")

	_, err := execute(t, "--config", cfg, "parse")
	if err == nil {
		t.Fatal("expected error without input files")
	}
	if apperrors.KindOf(err) != apperrors.KindParse {
		t.Errorf("KindOf = %v, want parse", apperrors.KindOf(err))
	}
}

func TestParseCommandUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")
	in := writeFile(t, dir, "notes.txt", "title:x\n")

	if _, err := execute(t, "--config", cfg, "parse", "--format", "xml", in); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestAddDryRunWithUnhandledLinks(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")
	notes := filepath.Join(dir, "in")
	if err := os.Mkdir(notes, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, notes, "a.txt", "title:somewhere link:https://example.invalid/page\n")
	writeFile(t, notes, "skip.md", "title:ignored\n")

	out, err := execute(t, "--config", cfg, "add", "--src-dir", notes, "--mode", "dry-run")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 records") || !strings.Contains(out, "1 unhandled links") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "0 rows added") {
		t.Errorf("dry run added rows:\n%s", out)
	}
}

func TestAddRejectsBadModeFlag(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig(t, dir, "")
	in := writeFile(t, dir, "notes.txt", "title:x\n")

	_, err := execute(t, "--config", cfg, "add", "--mode", "publish", in)
	if apperrors.KindOf(err) != apperrors.KindConfig {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestReportErrorExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cancelled", context.Canceled, 130},
		{"plain", os.ErrNotExist, 1},
		{"config", apperrors.Wrap(apperrors.KindConfig, "load", os.ErrNotExist), 2},
		{"validation", apperrors.Wrap(apperrors.KindValidation, "add", os.ErrInvalid), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reportError(tt.err, false); got != tt.want {
				t.Errorf("reportError() = %d, want %d", got, tt.want)
			}
		})
	}
}
