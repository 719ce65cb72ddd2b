package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

//go:embed sample_config.toml
var sampleConfig string

// Account holds the Video Cloud credentials. CredentialsParam names an SSM
// SecureString with the account JSON, used when the fields are empty.
type Account struct {
	AccountID        string `toml:"account_id"`
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
	CredentialsParam string `toml:"credentials_param"`
}

// API holds the remote base URLs and the per-request timeout.
type API struct {
	CMSURL         string `toml:"cms_url"`
	IngestURL      string `toml:"ingest_url"`
	OAuthURL       string `toml:"oauth_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retry controls re-issuing calls that hit the transient timeout code.
type Retry struct {
	Enabled     bool   `toml:"enabled"`
	MaxAttempts int    `toml:"max_attempts"`
	Delay       string `toml:"delay"`

	delay time.Duration
}

// Upload controls push ingest uploads.
type Upload struct {
	Region      string `toml:"region"`
	PartSizeMiB int    `toml:"part_size_mib"`
	Concurrency int    `toml:"concurrency"`
}

// Jobs configures job tracking after an ingest is submitted.
type Jobs struct {
	DynamoTable        string `toml:"dynamo_table"`
	EventBus           string `toml:"event_bus"`
	TTLDays            int    `toml:"ttl_days"`
	PollTimeoutMinutes int    `toml:"poll_timeout_minutes"`
	CallbackURL        string `toml:"callback_url"`
	CallbackToken      string `toml:"callback_token"`
	MetricsNamespace   string `toml:"metrics_namespace"`
}

// Logging configures the log level.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full settings tree.
type Config struct {
	Account Account `toml:"account"`
	API     API     `toml:"api"`
	Retry   Retry   `toml:"retry"`
	Upload  Upload  `toml:"upload"`
	Jobs    Jobs    `toml:"jobs"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns ~/.config/dynamic-ingest/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dynamic-ingest", "config.toml"), nil
}

// Load reads the file at path (or the default location when path is
// empty), applies environment overrides, and validates the result. A missing
// file is not an error; the returned bool reports whether one was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", path)
	}
	return path, true, nil
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Credentials returns the account credentials from the file and environment.
func (c *Config) Credentials() brightcove.Credentials {
	return brightcove.Credentials{
		AccountID:    c.Account.AccountID,
		ClientID:     c.Account.ClientID,
		ClientSecret: c.Account.ClientSecret,
	}
}

// RetryPolicy returns the transient-error policy. Retries are off unless
// enabled.
func (c *Config) RetryPolicy() brightcove.RetryPolicy {
	if !c.Retry.Enabled {
		return brightcove.NoRetry()
	}
	return brightcove.RetryPolicy{MaxAttempts: c.Retry.MaxAttempts, Delay: c.Retry.delay}
}

// ClientOptions returns the API client options for these settings.
func (c *Config) ClientOptions() []brightcove.Option {
	return []brightcove.Option{
		brightcove.WithHTTPClient(&http.Client{Timeout: time.Duration(c.API.TimeoutSeconds) * time.Second}),
		brightcove.WithEndpoints(brightcove.Endpoints{
			CMS:    c.API.CMSURL,
			Ingest: c.API.IngestURL,
			OAuth:  c.API.OAuthURL,
		}),
		brightcove.WithRetry(c.RetryPolicy()),
	}
}

// NewUploader returns the S3 uploader for push ingests.
func (c *Config) NewUploader() *s3util.Uploader {
	return s3util.NewUploader(c.Upload.Region, s3util.WithPartSize(int64(c.Upload.PartSizeMiB)<<20))
}

// OrchestratorOptions returns the ingest options for these settings.
func (c *Config) OrchestratorOptions() []ingest.Option {
	opts := []ingest.Option{ingest.WithUploadConcurrency(c.Upload.Concurrency)}
	if c.Jobs.MetricsNamespace != "" {
		opts = append(opts, ingest.WithMetrics(c.Jobs.MetricsNamespace))
	}
	return opts
}

// PollTimeout returns how long to wait for an ingest job to finish.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Jobs.PollTimeoutMinutes) * time.Minute
}

// TTL returns how long job records are kept.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Jobs.TTLDays) * 24 * time.Hour
}

// CallbackURL returns the notification URL added to ingest requests, with
// the shared token as a query parameter. Empty when callbacks are off.
func (c *Config) CallbackURL() string {
	u := c.Jobs.CallbackURL
	if u == "" || c.Jobs.CallbackToken == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "token=" + url.QueryEscape(c.Jobs.CallbackToken)
}

// Describe lists non-sensitive settings for startup logging.
func (c *Config) Describe() map[string]string {
	return map[string]string{
		"accountId":         c.Account.AccountID,
		"retryAttempts":     fmt.Sprint(c.RetryPolicy().MaxAttempts),
		"retryDelay":        c.Retry.delay.String(),
		"uploadRegion":      c.Upload.Region,
		"uploadConcurrency": fmt.Sprint(c.Upload.Concurrency),
		"partSizeMiB":       fmt.Sprint(c.Upload.PartSizeMiB),
		"metricsNamespace":  c.Jobs.MetricsNamespace,
		"logLevel":          c.Logging.Level,
	}
}

// FromEnv builds a Config from defaults and environment variables only, for
// functions that ship without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
