// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every function needs some subset of: AWS config, SSM credential fetch, the
// job store, the event publisher, and startup logging. Each Lambda's init()
// is a short composition of these helpers.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/events"
	"github.com/fpang/dynamic-ingest/internal/jobstore"
	"github.com/fpang/dynamic-ingest/internal/logging"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// ParameterAPI is the subset of the SSM client used to read credentials.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadCredentials completes base with the account JSON stored in the SSM
// SecureString param. Fields already set in base win. The parameter is not
// read when base is complete or param is empty.
func LoadCredentials(ctx context.Context, client ParameterAPI, param string, base brightcove.Credentials) (brightcove.Credentials, error) {
	if base.Validate() == nil || param == "" {
		return base, base.Validate()
	}

	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return base, fmt.Errorf("read credentials parameter %s: %w", param, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return base, fmt.Errorf("credentials parameter %s has no value", param)
	}

	stored, err := brightcove.ParseCredentials([]byte(*out.Parameter.Value))
	if err != nil {
		return base, err
	}
	creds := base.Merge(stored)
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Credentials loaded from SSM")
	return creds, creds.Validate()
}

// InitJobStore creates the DynamoDB job store. Returns nil (with a warning)
// when no table is configured.
func InitJobStore(cfg aws.Config, table string, ttl time.Duration) jobstore.Store {
	if table == "" {
		log.Warn().Msg("Job table not set, job tracking disabled")
		return nil
	}
	return jobstore.NewDynamoStore(dynamodb.NewFromConfig(cfg), table, ttl)
}

// InitPublisher creates the EventBridge publisher. Returns nil (with a
// warning) when no bus is configured.
func InitPublisher(cfg aws.Config, bus string) *events.Publisher {
	if bus == "" {
		log.Warn().Msg("Event bus not set, job events disabled")
		return nil
	}
	return events.NewPublisher(eventbridge.NewFromConfig(cfg), bus)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
