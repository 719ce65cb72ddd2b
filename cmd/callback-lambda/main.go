// Package main provides a Lambda entry point for Dynamic Ingest job
// notifications.
//
// A lightweight function behind a Function URL or HTTP API:
//   - POST /callback?token=... receives one notification per processed entity
//
// Each notification updates the job record in DynamoDB; terminal ones are
// also published to EventBridge. The shared token comes from
// INGEST_CALLBACK_TOKEN or the SSM parameter named by
// INGEST_CALLBACK_TOKEN_PARAM (default /dynamic-ingest/prod/callback-token).
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/config"
	"github.com/fpang/dynamic-ingest/internal/lambdaboot"
	"github.com/fpang/dynamic-ingest/internal/logging"
	"github.com/fpang/dynamic-ingest/internal/webhook"
)

// envCallbackTokenParam names the SSM SecureString holding the shared token.
const envCallbackTokenParam = "INGEST_CALLBACK_TOKEN_PARAM"

// commitHash is set at build time with -ldflags "-X main.commitHash=...".
var commitHash = "dev"

var callbackHandler *webhook.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	clients := lambdaboot.InitAWS()

	token := cfg.Jobs.CallbackToken
	tokenParam := logging.EnvOrDefault(envCallbackTokenParam, "/dynamic-ingest/prod/callback-token")
	if token == "" && tokenParam != "" {
		result, err := clients.SSM.GetParameter(context.Background(), &ssm.GetParameterInput{
			Name:           &tokenParam,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Fatal().Err(err).Str("param", tokenParam).Msg("Failed to read callback token from SSM")
		}
		token = aws.ToString(result.Parameter.Value)
		log.Info().Msg("Callback token loaded from SSM")
	}
	if token == "" {
		log.Fatal().Msg("Callback token is required")
	}

	var store webhook.StatusUpdater
	if s := lambdaboot.InitJobStore(clients.Config, cfg.Jobs.DynamoTable, cfg.TTL()); s != nil {
		store = s
	}
	var pub webhook.JobPublisher
	if p := lambdaboot.InitPublisher(clients.Config, cfg.Jobs.EventBus); p != nil {
		pub = p
	}
	callbackHandler = webhook.NewHandler(token, store, pub)

	lambdaboot.StartupLog("callback-lambda", initStart).
		CommitHash(commitHash).
		DynamoTable("jobs", cfg.Jobs.DynamoTable).
		EventBus("events", cfg.Jobs.EventBus).
		SSMParam("callbackToken", tokenParam).
		Feature("jobStore", store != nil).
		Feature("events", pub != nil).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle("/callback", withLogger(callbackHandler))

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}

// withLogger attaches a request-scoped logger carrying the trace id.
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.With().Str("path", r.URL.Path).Logger()
		if id := r.Header.Get("X-Amzn-Trace-Id"); id != "" {
			logger = logger.With().Str("traceId", id).Logger()
		}
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}
