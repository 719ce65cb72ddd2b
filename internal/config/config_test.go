package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		brightcove.EnvAccountID, brightcove.EnvClientID, brightcove.EnvClientSecret,
		config.EnvCredentialsParam, config.EnvUploadRegion, config.EnvUploadConcurrency,
		config.EnvJobsTable, config.EnvEventBus, config.EnvCallbackURL, config.EnvCallbackToken,
		"INGEST_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists || resolved != path {
		t.Fatalf("expected absent file at %s, got exists=%v resolved=%s", path, exists, resolved)
	}
	if cfg.API.IngestURL != brightcove.DefaultIngestURL {
		t.Errorf("unexpected ingest url %s", cfg.API.IngestURL)
	}
	if p := cfg.RetryPolicy(); p.MaxAttempts != 1 {
		t.Errorf("expected retries disabled by default, got %+v", p)
	}
	if cfg.Upload.Concurrency != 1 || cfg.Upload.PartSizeMiB != 16 {
		t.Errorf("unexpected upload defaults %+v", cfg.Upload)
	}
	if cfg.PollTimeout() != 30*time.Minute {
		t.Errorf("unexpected poll timeout %s", cfg.PollTimeout())
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[account]
account_id = "111"
client_id = "file-client"
client_secret = "file-secret"

[retry]
enabled = true
max_attempts = 5
delay = "250ms"

[upload]
region = "us-west-2"
concurrency = 3

[logging]
level = "DEBUG"
`)
	t.Setenv(brightcove.EnvClientSecret, "env-secret")
	t.Setenv(config.EnvUploadConcurrency, "4")

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected file to be read")
	}
	creds := cfg.Credentials()
	if creds.AccountID != "111" || creds.ClientID != "file-client" || creds.ClientSecret != "env-secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}
	if p := cfg.RetryPolicy(); p.MaxAttempts != 5 || p.Delay != 250*time.Millisecond {
		t.Errorf("unexpected retry policy %+v", p)
	}
	if cfg.Upload.Region != "us-west-2" || cfg.Upload.Concurrency != 4 {
		t.Errorf("unexpected upload settings %+v", cfg.Upload)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected normalized level, got %s", cfg.Logging.Level)
	}
}

func TestRetryEnabledWithoutValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[retry]\nenabled = true\nmax_attempts = 0\ndelay = \"\"\n")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p := cfg.RetryPolicy(); p != brightcove.DefaultRetry() {
		t.Errorf("expected default retry policy, got %+v", p)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[api]\ncms = \"x\"\n", "parse config"},
		{"bad delay", "[retry]\nenabled = true\ndelay = \"soon\"\n", "retry.delay"},
		{"relative url", "[api]\ncms_url = \"/videos\"\n", "api.cms_url"},
		{"small part size", "[upload]\npart_size_mib = 1\n", "upload.part_size_mib"},
		{"bad level", "[logging]\nlevel = \"trace\"\n", "logging.level"},
		{"zero concurrency", "[upload]\nconcurrency = 0\n", "upload.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, _, _, err := config.Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"account", "api", "retry", "upload", "jobs", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Errorf("sample is missing [%s]", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil || !exists {
		t.Fatalf("sample does not load: exists=%v err=%v", exists, err)
	}
	if cfg.Jobs.MetricsNamespace != "DynamicIngest" {
		t.Errorf("unexpected namespace %s", cfg.Jobs.MetricsNamespace)
	}
}

func TestCallbackURL(t *testing.T) {
	cfg := config.Default()
	if cfg.CallbackURL() != "" {
		t.Errorf("expected no callback by default")
	}
	cfg.Jobs.CallbackURL = "https://hooks.example.com/callback"
	cfg.Jobs.CallbackToken = "s3cr+t"
	if got := cfg.CallbackURL(); got != "https://hooks.example.com/callback?token=s3cr%2Bt" {
		t.Errorf("unexpected callback url %s", got)
	}
	cfg.Jobs.CallbackURL = "https://hooks.example.com/callback?src=di"
	if got := cfg.CallbackURL(); !strings.HasSuffix(got, "?src=di&token=s3cr%2Bt") {
		t.Errorf("unexpected callback url %s", got)
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(brightcove.EnvAccountID, "222")
	t.Setenv(config.EnvJobsTable, "ingest-jobs")

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Account.AccountID != "222" || cfg.Jobs.DynamoTable != "ingest-jobs" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.ClientOptions()) != 3 || len(cfg.OrchestratorOptions()) != 2 {
		t.Errorf("unexpected option counts")
	}
}
