package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a minimal sqlite config and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scrimbot.yaml")
	cfg := `
bot:
  token: t
guild:
  id: "1"
  create_game_channel: "10"
  join_channel: "20"
database:
  driver: sqlite
  path: "` + filepath.Join(dir, "scrimbot.db") + `"
`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDBCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	for _, sub := range []string{"init", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBInitCmd(t *testing.T) {
	path := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Migrated 6 tables") {
		t.Errorf("expected migration summary, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success message, got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", "/nonexistent/scrimbot.yaml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestDBResetCmd_AbortsWithoutConfirmation(t *testing.T) {
	path := writeTestConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"db", "reset", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Aborted") {
		t.Errorf("expected abort message, got: %s", buf.String())
	}
}

func TestDBResetCmd_Yes(t *testing.T) {
	path := writeTestConfig(t)

	// Initialize first so there is something to drop.
	initCmd := newRootCmd()
	initCmd.SetOut(new(bytes.Buffer))
	initCmd.SetArgs([]string{"db", "init", "--config", path})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "reset", "--config", path, "--yes"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Dropped all tables") {
		t.Errorf("expected drop message, got: %s", out)
	}
	if !strings.Contains(out, "re-initialized") {
		t.Errorf("expected re-init message, got: %s", out)
	}
}
