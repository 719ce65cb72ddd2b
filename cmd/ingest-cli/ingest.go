package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dynamic-ingest/internal/cli"
	"github.com/fpang/dynamic-ingest/internal/ingest"
	"github.com/fpang/dynamic-ingest/internal/report"
	"github.com/fpang/dynamic-ingest/internal/tracking"
)

type ingestFlags struct {
	request string
	wait    bool
	timeout time.Duration
	report  string
}

func newIngestCmd() *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit an ingest request document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.request, "request", "r", "", "Request document (JSON); prompts when omitted")
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "Poll the ingest job until it finishes or fails")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "How long --wait polls (default from config)")
	cmd.Flags().StringVar(&f.report, "report", "", "Write the aggregated response to this file (.gz or .zst to compress)")
	return cmd
}

func runIngest(cmd *cobra.Command, f ingestFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	path := f.request
	if path == "" {
		path = cli.PromptForPath(cmd.InOrStdin(), cmd.ErrOrStderr(), "Request document", "request.json")
	}
	path, err := cli.ResolveFile(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	req, err := ingest.ParseRequest(data)
	if err != nil {
		return err
	}
	if cb := cfg.CallbackURL(); cb != "" {
		req = ingest.WithCallbacks(req, cb)
	}

	client, orch, err := cli.InitOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	tracker, err := cli.InitTracker(ctx, cfg, client.AccountID())
	if err != nil {
		return err
	}

	start := time.Now()
	resp, ingestErr := orch.Ingest(ctx, req)
	if ingestErr == nil {
		log.Info().
			Str("videoId", resp.VideoID).
			Str("jobId", resp.Ingest.ID).
			Str("elapsed", cli.FormatDurationShort(time.Since(start))).
			Msg("Ingest submitted")
		if err := tracker.Submitted(ctx, req.Mode(), resp); err != nil {
			log.Warn().Err(err).Msg("Job tracking failed")
		}
		if f.wait {
			resp, ingestErr = waitAndTrack(ctx, orch, tracker, resp, f.timeout)
		}
	}

	if f.report != "" {
		if err := report.Write(f.report, resp); err != nil {
			log.Error().Err(err).Str("path", f.report).Msg("Failed to write report")
		} else {
			log.Info().Str("path", f.report).Msg("Report written")
		}
	}
	if err := cli.PrintJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	return ingestErr
}

// waitAndTrack polls the job started by resp and returns resp with its last
// status recorded.
func waitAndTrack(ctx context.Context, orch *ingest.Orchestrator, tracker *tracking.Tracker, resp *ingest.Response, timeout time.Duration) (*ingest.Response, error) {
	if timeout <= 0 {
		timeout = cfg.PollTimeout()
	}
	followed, err := orch.Follow(ctx, resp, timeout)
	if ref, ok := followed.JobRef(); ok && followed.Status != nil {
		log.Info().Msg(cli.FormatJobStatus(followed.Status))
		if terr := tracker.Updated(ctx, ref, followed.Status); terr != nil {
			log.Warn().Err(terr).Msg("Job tracking failed")
		}
	}
	return followed, err
}
