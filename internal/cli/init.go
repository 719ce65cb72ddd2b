package cli

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/config"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/lambdaboot"
	"github.com/fpang/dynamic-ingest/internal/tracking"
)

// InitClient creates the API client for cfg. When credentials are
// incomplete and a credentials parameter is configured, the rest is read
// from SSM.
func InitClient(ctx context.Context, cfg *config.Config) (*brightcove.Client, error) {
	creds := cfg.Credentials()
	if creds.Validate() != nil && cfg.Account.CredentialsParam != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		creds, err = lambdaboot.LoadCredentials(ctx, ssm.NewFromConfig(awsCfg), cfg.Account.CredentialsParam, creds)
		if err != nil {
			return nil, err
		}
	}

	client, err := brightcove.NewClient(creds, cfg.ClientOptions()...)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("accountId", client.AccountID()).Msg("API client initialized")
	return client, nil
}

// InitOrchestrator creates the API client and the ingest orchestrator.
func InitOrchestrator(ctx context.Context, cfg *config.Config) (*brightcove.Client, *ingest.Orchestrator, error) {
	client, err := InitClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, ingest.New(client, cfg.NewUploader(), cfg.OrchestratorOptions()...), nil
}

// InitTracker creates a job tracker when a job table or event bus is
// configured. Returns a disabled tracker otherwise.
func InitTracker(ctx context.Context, cfg *config.Config, accountID string) (*tracking.Tracker, error) {
	if cfg.Jobs.DynamoTable == "" && cfg.Jobs.EventBus == "" {
		return tracking.New(accountID, nil, nil), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var pub tracking.Publisher
	if p := lambdaboot.InitPublisher(awsCfg, cfg.Jobs.EventBus); p != nil {
		pub = p
	}
	return tracking.New(accountID, lambdaboot.InitJobStore(awsCfg, cfg.Jobs.DynamoTable, cfg.TTL()), pub), nil
}
