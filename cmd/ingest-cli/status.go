package main

import (
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/cli"
	"github.com/fpang/dynamic-ingest/internal/ingest"
)

func newStatusCmd() *cobra.Command {
	var (
		ref     ingest.JobRef
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of an ingest job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ref.VideoID == "" || ref.JobID == "" {
				return errors.New("--video-id and --job-id are required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			client, orch, err := cli.InitOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}
			tracker, err := cli.InitTracker(ctx, cfg, client.AccountID())
			if err != nil {
				return err
			}

			var status *brightcove.JobStatus
			if wait {
				if timeout <= 0 {
					timeout = cfg.PollTimeout()
				}
				status, err = orch.WaitForJob(ctx, ref, timeout)
			} else {
				status, err = orch.Status(ctx, ref)
			}
			if status != nil {
				log.Info().Msg(cli.FormatJobStatus(status))
				if terr := tracker.Updated(ctx, ref, status); terr != nil {
					log.Warn().Err(terr).Msg("Job tracking failed")
				}
				if perr := cli.PrintJSON(cmd.OutOrStdout(), status); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&ref.VideoID, "video-id", "", "Video id")
	cmd.Flags().StringVar(&ref.JobID, "job-id", "", "Ingest job id")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes or fails")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long --wait polls (default from config)")
	return cmd
}
