package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInitSetsContextFallback(t *testing.T) {
	prevLogger, prevDefault, prevLevel := log.Logger, zerolog.DefaultContextLogger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.DefaultContextLogger = prevDefault
		zerolog.SetGlobalLevel(prevLevel)
	})

	t.Setenv(LevelEnv, "warn")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	Init()

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", zerolog.GlobalLevel())
	}
	if zerolog.DefaultContextLogger == nil {
		t.Fatal("expected a default context logger")
	}

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	log.Ctx(context.Background()).Warn().Msg("hello")
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("expected context-less logging to reach the global logger, got %q", buf.String())
	}
}

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	NewStartupLogger("ingest-lambda").
		CommitHash("abc123").
		Endpoint("ingest", "https://ingest.api.brightcove.com/v1/accounts").
		DynamoTable("jobs", "ingest-jobs").
		SSMParam("credentials", "/dynamic-ingest/prod/credentials").
		Feature("wait", false).
		Config("uploadConcurrency", "2").
		InitDuration(150 * time.Millisecond).
		write(l.Info())

	var doc struct {
		Function struct {
			Name       string `json:"name"`
			CommitHash string `json:"commitHash"`
		} `json:"function"`
		Resources struct {
			Endpoints    map[string]string `json:"endpoints"`
			DynamoTables map[string]string `json:"dynamoTables"`
			SSMParams    map[string]string `json:"ssmParams"`
		} `json:"resources"`
		Features map[string]bool   `json:"features"`
		Config   map[string]string `json:"config"`
		Message  string            `json:"message"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if doc.Function.Name != "ingest-lambda" || doc.Function.CommitHash != "abc123" {
		t.Errorf("unexpected function block %+v", doc.Function)
	}
	if doc.Resources.DynamoTables["jobs"] != "ingest-jobs" || doc.Resources.SSMParams["credentials"] == "" {
		t.Errorf("unexpected resources %+v", doc.Resources)
	}
	if _, ok := doc.Features["wait"]; !ok || doc.Config["uploadConcurrency"] != "2" {
		t.Errorf("unexpected features/config %+v %+v", doc.Features, doc.Config)
	}
	if doc.Message != "Cold start complete" {
		t.Errorf("unexpected message %q", doc.Message)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("INGEST_TEST_VALUE", "")
	if got := EnvOrDefault("INGEST_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
	t.Setenv("INGEST_TEST_VALUE", "set")
	if got := EnvOrDefault("INGEST_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("expected set, got %s", got)
	}
}
