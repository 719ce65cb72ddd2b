package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/fpang/dynamic-ingest/internal/s3util"
)

// Validate ensures the configuration is usable. Credentials are not checked
// here because they may still come from SSM; the API client validates them.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	for name, raw := range map[string]string{
		"api.cms_url":    c.API.CMSURL,
		"api.ingest_url": c.API.IngestURL,
		"api.oauth_url":  c.API.OAuthURL,
	} {
		if err := validateURL(name, raw); err != nil {
			return err
		}
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if !c.Retry.Enabled {
		return nil
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.delay < 0 {
		return errors.New("retry.delay must not be negative")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Region == "" {
		return errors.New("upload.region must be set")
	}
	if int64(c.Upload.PartSizeMiB)<<20 < s3util.MinPartSize {
		return fmt.Errorf("upload.part_size_mib must be at least %d", s3util.MinPartSize>>20)
	}
	if c.Upload.Concurrency < 1 {
		return errors.New("upload.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.TTLDays < 0 {
		return errors.New("jobs.ttl_days must not be negative")
	}
	if c.Jobs.PollTimeoutMinutes <= 0 {
		return errors.New("jobs.poll_timeout_minutes must be positive")
	}
	if c.Jobs.CallbackURL != "" {
		if err := validateURL("jobs.callback_url", c.Jobs.CallbackURL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
