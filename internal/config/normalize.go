package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/logging"
)

// Environment variables that override file settings.
const (
	EnvCredentialsParam  = "INGEST_CREDENTIALS_PARAM"
	EnvUploadRegion      = "INGEST_UPLOAD_REGION"
	EnvUploadConcurrency = "INGEST_UPLOAD_CONCURRENCY"
	EnvJobsTable         = "INGEST_JOBS_TABLE"
	EnvEventBus          = "INGEST_EVENT_BUS"
	EnvCallbackURL       = "INGEST_CALLBACK_URL"
	EnvCallbackToken     = "INGEST_CALLBACK_TOKEN"
)

// applyEnv layers environment variables over file values. Credentials from
// the environment win over the file.
func (c *Config) applyEnv() {
	env := brightcove.CredentialsFromEnv()
	merged := env.Merge(c.Credentials())
	c.Account.AccountID = merged.AccountID
	c.Account.ClientID = merged.ClientID
	c.Account.ClientSecret = merged.ClientSecret

	setString(&c.Account.CredentialsParam, EnvCredentialsParam)
	setString(&c.Upload.Region, EnvUploadRegion)
	setString(&c.Jobs.DynamoTable, EnvJobsTable)
	setString(&c.Jobs.EventBus, EnvEventBus)
	setString(&c.Jobs.CallbackURL, EnvCallbackURL)
	setString(&c.Jobs.CallbackToken, EnvCallbackToken)
	setString(&c.Logging.Level, logging.LevelEnv)
	if v := strings.TrimSpace(os.Getenv(EnvUploadConcurrency)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upload.Concurrency = n
		}
	}
}

func setString(dst *string, envVar string) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		*dst = v
	}
}

func (c *Config) normalize() error {
	c.Account.AccountID = strings.TrimSpace(c.Account.AccountID)
	c.Account.ClientID = strings.TrimSpace(c.Account.ClientID)
	c.Account.ClientSecret = strings.TrimSpace(c.Account.ClientSecret)

	c.API.CMSURL = strings.TrimRight(strings.TrimSpace(c.API.CMSURL), "/")
	c.API.IngestURL = strings.TrimRight(strings.TrimSpace(c.API.IngestURL), "/")
	c.API.OAuthURL = strings.TrimSpace(c.API.OAuthURL)

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts == 0 {
			c.Retry.MaxAttempts = brightcove.DefaultRetryAttempts
		}
		if strings.TrimSpace(c.Retry.Delay) == "" {
			c.Retry.Delay = defaultRetryDelay
		}
	}
	if d := strings.TrimSpace(c.Retry.Delay); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("retry.delay: %w", err)
		}
		c.Retry.delay = parsed
	}

	c.Upload.Region = strings.TrimSpace(c.Upload.Region)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
