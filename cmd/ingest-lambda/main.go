// Package main provides a Lambda entry point that runs one Dynamic Ingest
// request per invocation.
//
// The event is a request document, either bare or wrapped:
//
//	{"video": {...}, "ingest": {...}}
//	{"request": {"video_id": "...", "ingest": {...}}, "wait": true}
//
// Push requests read files from the function's filesystem (for example an
// EFS mount). Settings come from INGEST_* and BRIGHTCOVE_* environment
// variables; credentials may also come from the SSM parameter named by
// INGEST_CREDENTIALS_PARAM.
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/config"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/jsonutil"
	"github.com/fpang/dynamic-ingest/internal/lambdaboot"
	"github.com/fpang/dynamic-ingest/internal/logging"
	"github.com/fpang/dynamic-ingest/internal/tracking"
)

// Clients initialized at cold start.
var (
	cfg          *config.Config
	orchestrator *ingest.Orchestrator
	tracker      *tracking.Tracker
)

// commitHash is set at build time with -ldflags "-X main.commitHash=...".
var commitHash = "dev"

var coldStart = true

func init() {
	initStart := time.Now()
	logging.Init()

	var err error
	cfg, err = config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	clients := lambdaboot.InitAWS()
	creds, err := lambdaboot.LoadCredentials(context.Background(), clients.SSM, cfg.Account.CredentialsParam, cfg.Credentials())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load credentials")
	}
	client, err := brightcove.NewClient(creds, cfg.ClientOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API client")
	}
	orchestrator = ingest.New(client, cfg.NewUploader(), cfg.OrchestratorOptions()...)

	var pub tracking.Publisher
	if p := lambdaboot.InitPublisher(clients.Config, cfg.Jobs.EventBus); p != nil {
		pub = p
	}
	store := lambdaboot.InitJobStore(clients.Config, cfg.Jobs.DynamoTable, cfg.TTL())
	tracker = tracking.New(client.AccountID(), store, pub)

	startup := lambdaboot.StartupLog("ingest-lambda", initStart).
		CommitHash(commitHash).
		Endpoint("cms", cfg.API.CMSURL).
		Endpoint("ingest", cfg.API.IngestURL).
		DynamoTable("jobs", cfg.Jobs.DynamoTable).
		EventBus("events", cfg.Jobs.EventBus).
		SSMParam("credentials", cfg.Account.CredentialsParam).
		Feature("retry", cfg.Retry.Enabled).
		Feature("callbacks", cfg.CallbackURL() != "").
		Feature("metrics", cfg.Jobs.MetricsNamespace != "")
	for k, v := range cfg.Describe() {
		startup.Config(k, v)
	}
	startup.Log()
}

// IngestEvent is the wrapped invocation payload.
type IngestEvent struct {
	Request json.RawMessage `json:"request"`
	Wait    bool            `json:"wait,omitempty"`
}

// IngestResult is returned to the caller. Response is always set, even when
// the ingest failed part way; Error and Kind describe the failure.
type IngestResult struct {
	Response *ingest.Response `json:"response"`
	Error    string           `json:"error,omitempty"`
	Kind     string           `json:"errorKind,omitempty"`
}

func handler(ctx context.Context, raw json.RawMessage) (IngestResult, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "ingest-lambda").Msg("Cold start, first invocation")
	}
	ctx = log.Logger.WithContext(ctx)

	event, err := parseEvent(raw)
	if err != nil {
		return failure(&ingest.Response{}, err)
	}
	req, err := ingest.ParseRequest(event.Request)
	if err != nil {
		return failure(&ingest.Response{}, err)
	}
	if cb := cfg.CallbackURL(); cb != "" {
		req = ingest.WithCallbacks(req, cb)
	}

	resp, err := orchestrator.Ingest(ctx, req)
	if err != nil {
		return failure(resp, err)
	}
	if err := tracker.Submitted(ctx, req.Mode(), resp); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("jobId", resp.Ingest.ID).Msg("Job tracking failed")
	}

	if event.Wait {
		resp, err = orchestrator.Follow(ctx, resp, waitBudget(ctx))
		if ref, ok := resp.JobRef(); ok && resp.Status != nil {
			if terr := tracker.Updated(ctx, ref, resp.Status); terr != nil {
				log.Ctx(ctx).Warn().Err(terr).Str("jobId", ref.JobID).Msg("Job tracking failed")
			}
		}
		if err != nil {
			return failure(resp, err)
		}
	}
	return IngestResult{Response: resp}, nil
}

// parseEvent accepts a bare request document or an IngestEvent.
func parseEvent(raw json.RawMessage) (IngestEvent, error) {
	raw = jsonutil.StripControl(raw)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		e := ingesterr.Validation(ingesterr.CodeInvalidIngestData, "invalid invocation payload")
		e.Err = err
		return IngestEvent{}, e
	}
	if _, wrapped := fields["request"]; !wrapped {
		return IngestEvent{Request: raw}, nil
	}
	var event IngestEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		e := ingesterr.Validation(ingesterr.CodeInvalidIngestData, "invalid invocation payload")
		e.Err = err
		return IngestEvent{}, e
	}
	return event, nil
}

// waitBudget bounds polling by the configured timeout and the time left
// before the invocation deadline, keeping a few seconds to respond.
func waitBudget(ctx context.Context) time.Duration {
	budget := cfg.PollTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline) - 5*time.Second; left < budget {
			budget = left
		}
	}
	if budget < time.Second {
		budget = time.Second
	}
	return budget
}

// failure reports err in the result rather than failing the invocation, so
// the partial response reaches the caller.
func failure(resp *ingest.Response, err error) (IngestResult, error) {
	return IngestResult{Response: resp, Error: err.Error(), Kind: ingesterr.KindOf(err).String()}, nil
}

func main() {
	lambda.Start(handler)
}
