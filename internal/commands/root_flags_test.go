package sieve

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/pipeline"
	"github.com/mwiater/sieve/internal/scheduler"
	"github.com/spf13/viper"
)

func resetFlag(cmdFlag string) {
	flag := rootCmd.PersistentFlags().Lookup(cmdFlag)
	if flag == nil {
		return
	}
	_ = flag.Value.Set(flag.DefValue)
	flag.Changed = false
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func useConfigFile(t *testing.T, path string) {
	t.Helper()
	prevCfgFile := cfgFile
	cfgFile = path
	viper.SetConfigFile(path)
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		viper.SetConfigFile(prevCfgFile)
	})
	t.Cleanup(func() { _ = logging.Close() })
}

const minimalConfig = `{
  "hosts": [{"name": "local", "url": "http://127.0.0.1:11434"}],
  "testModels": [{"host": "local", "model": "m1"}],
  "sources": [
    {"name": "world", "collector": "rss", "generator": "llm-mcq", "benchmarkId": 3, "locator": "https://example.com/rss"},
    {"name": "quiet", "collector": "json", "generator": "headline-cloze", "benchmarkId": 4, "locator": "https://example.com/api", "disabled": true}
  ]
}`

func TestPersistentPreRunEUsesFlagValues(t *testing.T) {
	dir := t.TempDir()
	useConfigFile(t, writeTempConfig(t, minimalConfig))

	for _, name := range []string{"debug", "logFile", "dataDir", "concurrency"} {
		resetFlag(name)
	}
	_ = rootCmd.PersistentFlags().Set("debug", "true")
	_ = rootCmd.PersistentFlags().Set("logFile", filepath.Join(dir, "sieve.log"))
	_ = rootCmd.PersistentFlags().Set("dataDir", dir)
	_ = rootCmd.PersistentFlags().Set("concurrency", "7")
	t.Cleanup(func() {
		for _, name := range []string{"debug", "logFile", "dataDir", "concurrency"} {
			resetFlag(name)
		}
	})

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err != nil {
		t.Fatalf("PersistentPreRunE error: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil || cfg.ConfigPath != cfgFile {
		t.Fatalf("expected config loaded with path %s", cfgFile)
	}
	if !cfg.Debug || cfg.DataDir != dir || cfg.WorkerLimit() != 7 {
		t.Fatalf("expected flag values to flow into config: %+v", cfg)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0].BenchmarkID != 3 {
		t.Fatalf("expected sources from file, got %+v", cfg.Sources)
	}
	if _, err := requireConfig(); err != nil {
		t.Fatalf("requireConfig: %v", err)
	}
}

func TestPersistentPreRunERejectsSchemaViolations(t *testing.T) {
	useConfigFile(t, writeTempConfig(t, `{"sources": "not-a-list"}`))

	if err := rootCmd.PersistentPreRunE(rootCmd, []string{}); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestShowConfigCommandOutput(t *testing.T) {
	configPath := writeTempConfig(t, minimalConfig)
	useConfigFile(t, configPath)
	resetFlag("dataDir")
	_ = rootCmd.PersistentFlags().Set("dataDir", t.TempDir())
	t.Cleanup(func() { resetFlag("dataDir"); resetFlag("debug") })

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--debug", "show", "config"})
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	if _, err := rootCmd.ExecuteC(); err != nil {
		t.Fatalf("ExecuteC error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Config file: "+configPath) {
		t.Fatalf("expected config file path in output, got %s", out)
	}
	if !strings.Contains(out, "Debug:           true") {
		t.Fatalf("expected debug in output, got %s", out)
	}
	if !strings.Contains(out, "world: rss -> llm-mcq, prompt-set 3") {
		t.Fatalf("expected source line in output, got %s", out)
	}
}

func TestRenderSources(t *testing.T) {
	var buf bytes.Buffer
	renderSources(&buf, []appconfig.Source{
		{Name: "world", Collector: "rss", Generator: "llm-mcq", BenchmarkID: 3, Locator: "https://example.com/rss"},
		{Name: "quiet", Collector: "json", Generator: "headline-cloze", BenchmarkID: 4, Disabled: true},
	})
	out := buf.String()
	for _, want := range []string{"NAME", "world", "llm-mcq", "quiet", "no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestSelectSources(t *testing.T) {
	cfg, err := appconfig.Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	all, err := selectSources(&cfg, "")
	if err != nil || len(all) != 1 || all[0].Name != "world" {
		t.Fatalf("expected active sources only, got %+v (%v)", all, err)
	}
	if _, err := selectSources(&cfg, "quiet"); err == nil {
		t.Fatal("expected error for disabled source")
	}
	if _, err := selectSources(&cfg, "missing"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

type summaryRunner struct{}

func (summaryRunner) RunCycle(ctx context.Context, src appconfig.Source) pipeline.CycleReport {
	if src.Name == "bad" {
		return pipeline.CycleReport{Source: src.Name, Outcome: pipeline.OutcomeFailed, Error: "feed down"}
	}
	return pipeline.CycleReport{Source: src.Name, Outcome: pipeline.OutcomeUploaded, Kept: 2, PromptsUploaded: 2}
}

func TestPrintPassSummary(t *testing.T) {
	pass := scheduler.New(summaryRunner{}, []appconfig.Source{{Name: "good"}, {Name: "bad"}}, time.Hour, time.Second).
		RunPass(context.Background())

	var buf bytes.Buffer
	printPassSummary(&buf, pass)
	out := buf.String()
	for _, want := range []string{"good", "uploaded=2", "error: feed down", "2 cycles, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
}
