package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
	"captioner/internal/task"
	"captioner/internal/testsupport"
)

// writeCLIConfig materializes a testsupport config as a TOML file so the
// CLI resolves the same directories the test fixtures use.
func writeCLIConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\ncache_dir = %q\nmodels_dir = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.CacheDir,
		cfg.Paths.ModelsDir,
	)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, cfg
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[translator]") {
		t.Fatalf("sample config missing translator section: %q", string(data))
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestCLITasksListAndClear(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "tasks")
	if err != nil {
		t.Fatalf("tasks on empty store: %v", err)
	}
	if !strings.Contains(out, "No tasks recorded") {
		t.Fatalf("unexpected empty output: %q", out)
	}

	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	done := testsupport.NewTask(t, store, "/media/alpha.srt", "/media/alpha.zh.srt")
	done.Status = task.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
	testsupport.NewTask(t, store, "/media/beta.srt", "/media/beta.zh.srt")

	out, _, err = runCLI(t, configPath, "tasks")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if !strings.Contains(out, "alpha.srt") || !strings.Contains(out, "beta.srt") {
		t.Fatalf("tasks list missing entries: %q", out)
	}
	if !strings.Contains(out, string(task.StatusCompleted)) {
		t.Fatalf("tasks list missing status: %q", out)
	}
	if !strings.Contains(out, "1 pending, 1 completed") {
		t.Fatalf("tasks list missing status summary: %q", out)
	}

	out, _, err = runCLI(t, configPath, "tasks", "--status", "completed")
	if err != nil {
		t.Fatalf("tasks --status: %v", err)
	}
	if !strings.Contains(out, "alpha.srt") || strings.Contains(out, "beta.srt") {
		t.Fatalf("status filter leaked other tasks: %q", out)
	}
	if _, _, err := runCLI(t, configPath, "tasks", "--status", "sideways"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}

	out, _, err = runCLI(t, configPath, "tasks", "clear")
	if err != nil {
		t.Fatalf("tasks clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 tasks") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "tasks")
	if err != nil {
		t.Fatalf("tasks after clear: %v", err)
	}
	if strings.Contains(out, "alpha.srt") || !strings.Contains(out, "beta.srt") {
		t.Fatalf("clear removed the wrong tasks: %q", out)
	}
}

func TestCLITasksResetStuck(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)

	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	stuck := testsupport.NewTask(t, store, "/media/stuck.srt", "/media/stuck.zh.srt")
	stuck.Status = task.StatusTranslating
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("store.Update: %v", err)
	}

	out, _, err := runCLI(t, configPath, "tasks", "reset")
	if err != nil {
		t.Fatalf("tasks reset: %v", err)
	}
	if !strings.Contains(out, "Reset 1 tasks to pending") {
		t.Fatalf("unexpected reset output: %q", out)
	}
	if !strings.Contains(out, "stuck.srt") {
		t.Fatalf("reset output missing next pending task: %q", out)
	}

	updated, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != task.StatusPending {
		t.Fatalf("status after reset = %s", updated.Status)
	}
}

func TestCLIUsageHistory(t *testing.T) {
	configPath, cfg := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "usage")
	if err != nil {
		t.Fatalf("usage on empty ledger: %v", err)
	}
	if !strings.Contains(out, "No usage recorded") {
		t.Fatalf("unexpected empty output: %q", out)
	}

	led := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := led.Increment(ctx, "llm"); err != nil {
			t.Fatalf("ledger.Increment: %v", err)
		}
	}

	out, _, err = runCLI(t, configPath, "usage")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !strings.Contains(out, "llm") || !strings.Contains(out, "3") {
		t.Fatalf("usage output missing recorded row: %q", out)
	}
	if !strings.Contains(out, fmt.Sprintf("%d", cfg.Quota.DailyLimit)) {
		t.Fatalf("usage output missing limit: %q", out)
	}
}

func TestCLIConfigValidateReportsSharedEndpoint(t *testing.T) {
	configPath, _ := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
	if !strings.Contains(out, "shared") {
		t.Fatalf("expected shared endpoint note: %q", out)
	}
}

func TestCLIConfigShowRedactsAPIKey(t *testing.T) {
	base := t.TempDir()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\n\n[llm]\napi_key = \"sk-secret\"\n",
		filepath.Join(base, "data"),
	)
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked: %q", out)
	}
	if !strings.Contains(out, "<set>") || !strings.Contains(out, "[translator]") {
		t.Fatalf("unexpected show output: %q", out)
	}
}

func TestCLIVersion(t *testing.T) {
	out, _, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "captioner") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	configPath, _ := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output: %q", out)
	}
}
