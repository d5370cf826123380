package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
	"reelsmith/internal/testsupport"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
ingest_dir = %q
staging_dir = %q
output_dir = %q
log_dir = %q
api_bind = ""
`,
		filepath.Join(base, "ingest"),
		filepath.Join(base, "staging"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"))
	cfgPath := filepath.Join(base, "reelsmith.toml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, base
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestAddAndQueueList(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	source := filepath.Join(base, "cam1__gala.mp4")
	testsupport.WriteFile(t, source, 2048)

	out, err := runCLI(t, "--config", cfgPath, "add", source)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "queued")

	out, err = runCLI(t, "--config", cfgPath, "queue", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "cam1__gala.mp4")
	requireContains(t, out, "pending")

	out, err = runCLI(t, "--config", cfgPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "pending")

	out, err = runCLI(t, "--config", cfgPath, "--json", "queue", "list")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	requireContains(t, out, `"camera_id": "cam1"`)

	if _, err := runCLI(t, "--config", cfgPath, "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestAddRejectsUnsupportedFile(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	notes := filepath.Join(base, "notes.txt")
	testsupport.WriteFile(t, notes, 64)

	if _, err := runCLI(t, "--config", cfgPath, "add", notes); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := runCLI(t, "--config", cfgPath, "add", filepath.Join(base, "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestQueueRetryAndClear(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	source := filepath.Join(base, "cam2__toast.mkv")
	testsupport.WriteFile(t, source, 1024)
	if _, err := runCLI(t, "--config", cfgPath, "add", source); err != nil {
		t.Fatalf("add: %v", err)
	}

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	items, err := store.List(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one item, got %d (err %v)", len(items), err)
	}
	items[0].SetFailed("backend offline")
	if err := store.Update(context.Background(), items[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "1 item(s) reset for retry")

	if _, err := runCLI(t, "--config", cfgPath, "queue", "clear"); err == nil {
		t.Fatal("expected clear to demand --all or --status")
	}

	out, err = runCLI(t, "--config", cfgPath, "queue", "clear", "--all")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "1 item(s) removed")
}

func TestProcessReportsParkedItems(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	source := filepath.Join(base, "cam1__gala.mp4")
	testsupport.WriteFile(t, source, 1024)
	if _, err := runCLI(t, "--config", cfgPath, "add", source); err != nil {
		t.Fatalf("add: %v", err)
	}

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	items, err := store.List(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one item, got %d (err %v)", len(items), err)
	}
	items[0].SetFailed("backend offline")
	if err := store.Update(context.Background(), items[0]); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "process", source)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "previously failed: backend offline")
	requireContains(t, out, "queue retry 1")
	if strings.Contains(out, "Plan written to") {
		t.Fatalf("failed item must not report a plan:\n%s", out)
	}
}

func TestPlanShow(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	plan := &reel.Plan{
		ID:       "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Source:   "/footage/cam1__gala.mp4",
		Title:    "Gala Highlights",
		Ordering: "chronological",
		Clips: []reel.Clip{
			{Start: 20, End: 28, Score: 0.91, Guests: []string{"guest-1"}, Transition: reel.Transition{Kind: reel.TransitionNone}},
			{Start: 50, End: 57, Score: 0.74, Guests: []string{"guest-2"}, Transition: reel.Transition{Kind: reel.TransitionFade, Duration: 0.5}},
		},
		TotalS: 15,
	}
	planPath := filepath.Join(base, "gala.plan.json")
	if err := plan.WriteFile(planPath); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "plan", "show", planPath)
	if err != nil {
		t.Fatalf("plan show: %v", err)
	}
	requireContains(t, out, "Gala Highlights")
	requireContains(t, out, "guest-1")
	requireContains(t, out, "fade (0.5s)")

	if _, err := runCLI(t, "--config", cfgPath, "plan", "show", filepath.Join(base, "absent.plan.json")); err == nil {
		t.Fatal("expected error for missing plan file")
	}

	if _, err := runCLI(t, "--config", cfgPath, "plan", "show", "99"); err == nil {
		t.Fatal("expected error for unknown item id")
	}
}

func TestRenderCommandRequiresPlan(t *testing.T) {
	cfgPath, base := writeTestConfig(t)

	if _, err := runCLI(t, "--config", cfgPath, "render", "42"); err == nil {
		t.Fatal("expected error for unknown item")
	}

	source := filepath.Join(base, "cam1__gala.mp4")
	testsupport.WriteFile(t, source, 512)
	if _, err := runCLI(t, "--config", cfgPath, "add", source); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := runCLI(t, "--config", cfgPath, "render", "1")
	if err == nil {
		t.Fatalf("expected error for unplanned item, got output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "no plan yet") {
		t.Fatalf("unexpected error: %v", err)
	}
}
