package config

import (
	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/metrics"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

const (
	defaultTimeoutSeconds     = 30
	defaultRetryDelay         = "1s"
	defaultPartSizeMiB        = 16
	defaultUploadConcurrency  = 1
	defaultTTLDays            = 30
	defaultPollTimeoutMinutes = 30
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults. Retries are
// disabled; enabling them without other values gives 3 attempts 1s apart.
func Default() Config {
	return Config{
		API: API{
			CMSURL:         brightcove.DefaultCMSURL,
			IngestURL:      brightcove.DefaultIngestURL,
			OAuthURL:       brightcove.DefaultOAuthURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Retry: Retry{
			Enabled:     false,
			MaxAttempts: brightcove.DefaultRetryAttempts,
			Delay:       defaultRetryDelay,
		},
		Upload: Upload{
			Region:      s3util.DefaultRegion,
			PartSizeMiB: defaultPartSizeMiB,
			Concurrency: defaultUploadConcurrency,
		},
		Jobs: Jobs{
			TTLDays:            defaultTTLDays,
			PollTimeoutMinutes: defaultPollTimeoutMinutes,
			MetricsNamespace:   metrics.DefaultNamespace,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
