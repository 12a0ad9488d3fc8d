package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	img := cfg.Document.Images
	if img.DefaultDPI != 96 {
		t.Errorf("DefaultDPI = %d, want 96", img.DefaultDPI)
	}
	if img.MaxWidth != 6.0 || img.MaxHeight != 8.0 {
		t.Errorf("image box = %vx%v, want 6x8", img.MaxWidth, img.MaxHeight)
	}
	if img.DefaultWidth != 4.0 {
		t.Errorf("DefaultWidth = %v, want 4", img.DefaultWidth)
	}
	if img.Transcode != TranscodeModeUnsupported {
		t.Errorf("Transcode = %v, want %v", img.Transcode, TranscodeModeUnsupported)
	}
	if cfg.Document.Formatting.ProportionalLimit != 3 {
		t.Errorf("ProportionalLimit = %d, want 3", cfg.Document.Formatting.ProportionalLimit)
	}

	tr := cfg.Translation
	if tr.Model != "openrouter/gpt-4.1-nano" {
		t.Errorf("Model = %q", tr.Model)
	}
	if tr.ChunkSize != 45000 {
		t.Errorf("ChunkSize = %d, want 45000", tr.ChunkSize)
	}
	if tr.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", tr.MaxRetries)
	}
	if tr.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", tr.RetryDelay)
	}
	if tr.RequestTimeout != 3*time.Minute {
		t.Errorf("RequestTimeout = %v, want 3m", tr.RequestTimeout)
	}
	if tr.MaxConcurrentRequests != 2 {
		t.Errorf("MaxConcurrentRequests = %d, want 2", tr.MaxConcurrentRequests)
	}
	if !strings.Contains(tr.PromptTemplate, "{{ .Target }}") {
		t.Errorf("prompt template must not be expanded by configuration processing: %q", tr.PromptTemplate)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
document:
  fix_zip: false
  save_xml: true
  images:
    default_dpi: 72
    transcode: all
  formatting:
    proportional_limit: 5
translation:
  target_language: de
  max_concurrent_requests: 4
  retry_delay: 250ms
logging:
  console:
    level: debug
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
    format: json
reporting:
  destination: ` + filepath.Join(tmpDir, "report.zip") + `
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Document.FixZip {
		t.Error("Expected FixZip to be false")
	}
	if !cfg.Document.SaveXML {
		t.Error("Expected SaveXML to be true")
	}
	if cfg.Document.Images.DefaultDPI != 72 {
		t.Errorf("DefaultDPI = %d, want 72", cfg.Document.Images.DefaultDPI)
	}
	if cfg.Document.Images.Transcode != TranscodeModeAll {
		t.Errorf("Transcode = %v, want all", cfg.Document.Images.Transcode)
	}
	// untouched values come from defaults
	if cfg.Document.Images.MaxWidth != 6.0 {
		t.Errorf("MaxWidth = %v, want default 6", cfg.Document.Images.MaxWidth)
	}
	if cfg.Translation.TargetLanguage != "de" {
		t.Errorf("TargetLanguage = %q, want de", cfg.Translation.TargetLanguage)
	}
	if cfg.Translation.SourceLanguage != "en" {
		t.Errorf("SourceLanguage = %q, want default en", cfg.Translation.SourceLanguage)
	}
	if cfg.Translation.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", cfg.Translation.RetryDelay)
	}
	if cfg.Logging.FileLogger.Format != "json" {
		t.Errorf("file log format = %q, want json", cfg.Logging.FileLogger.Format)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\ndocument:\n  fix_zip: true\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\n"},
		{"bad transcode", "version: 1\ndocument:\n  images:\n    transcode: sometimes\n"},
		{"zero concurrency", "version: 1\ntranslation:\n  max_concurrent_requests: 0\n"},
		{"zero dpi", "version: 1\ndocument:\n  images:\n    default_dpi: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Translation.APIKey = "do-not-print-me"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	out := string(data)
	if strings.Contains(out, "do-not-print-me") {
		t.Error("Dump() leaked api key")
	}
	if !strings.Contains(out, "transcode: unsupported") {
		t.Errorf("Dump() should render enums as text, got:\n%s", out)
	}
	if !strings.Contains(out, "retry_delay: 1s") {
		t.Errorf("Dump() should render durations as text, got:\n%s", out)
	}

	// dumped configuration must load back
	back := &Config{}
	if _, err := unmarshalConfig(data, back, false); err != nil {
		t.Fatalf("unable to load dumped configuration: %v", err)
	}
	if back.Document.Images.Transcode != TranscodeModeUnsupported {
		t.Errorf("round trip Transcode = %v", back.Document.Images.Transcode)
	}
}

func TestTranscodeMode(t *testing.T) {
	for i, name := range TranscodeModeNames() {
		m, err := ParseTranscodeMode(strings.ToUpper(name))
		if err != nil {
			t.Fatalf("ParseTranscodeMode(%q) error = %v", name, err)
		}
		if int(m) != i || m.String() != name {
			t.Errorf("ParseTranscodeMode(%q) = %v", name, m)
		}
	}
	if _, err := ParseTranscodeMode("never"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if got := TranscodeMode(42).String(); got != "TranscodeMode(42)" {
		t.Errorf("String() for invalid = %q", got)
	}
	if _, err := TranscodeMode(-1).MarshalText(); err == nil {
		t.Error("expected MarshalText error for invalid value")
	}
}
