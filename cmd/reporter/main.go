package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pepmo/voucher-ops/internal/archive"
	"github.com/pepmo/voucher-ops/internal/jobs"
	"github.com/pepmo/voucher-ops/internal/jobs/inmemory"
	"github.com/pepmo/voucher-ops/internal/logger"
	"github.com/pepmo/voucher-ops/internal/provider"
	"github.com/pepmo/voucher-ops/internal/report"
)

const defaultUpstream = "https://nexus.payppy.app/api/dashboard/v2/voucher-transactions"

// 02:00 UTC is 07:30 IST, when the previous day's settlement has landed on
// both provider backends.
const defaultSchedule = "0 2 * * *"

func main() {
	var (
		upstream = flag.String("upstream", envOr("UPSTREAM_BASE_URL", defaultUpstream), "Upstream voucher-transactions API base URL (or set UPSTREAM_BASE_URL env)")
		schedule = flag.String("schedule", envOr("REPORT_SCHEDULE", defaultSchedule), "Cron expression for the daily report (UTC)")
		bucket   = flag.String("bucket", os.Getenv("REPORT_BUCKET"), "GCS bucket for report archival; empty disables archival")
		once     = flag.Bool("once", false, "Send one report immediately and exit instead of scheduling")
	)
	flag.Parse()

	log := logger.New("reporter")

	recipients := splitRecipients(os.Getenv("REPORT_RECIPIENTS"))
	if len(recipients) == 0 {
		log.Fatal().Msg("REPORT_RECIPIENTS is required")
	}

	client := provider.NewClient(*upstream, log)

	var archiver report.Archiver
	if *bucket != "" {
		archiver = archive.NewUploader(*bucket)
	}
	builder := report.NewBuilder(client, report.NewMailer(report.SMTPConfigFromEnv()), archiver, recipients, log)

	if *once {
		if err := builder.Run(context.Background(), &jobs.SendReportJob{JobID: "oneshot", Recipients: recipients}); err != nil {
			log.Fatal().Err(err).Msg("Report failed")
		}
		return
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, jobStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		reportJob, ok := job.(*jobs.SendReportJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reportJob.JobID).
			Str("report_date", reportJob.ReportDate).
			Msg("Processing report job")

		if err := builder.Run(ctx, reportJob); err != nil {
			log.Error().Err(err).Str("job_id", reportJob.JobID).Msg("Report job failed")
			return err
		}

		log.Info().Str("job_id", reportJob.JobID).Msg("Report job completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(*schedule, func() {
		job := &jobs.SendReportJob{Recipients: recipients}
		if err := jobQueue.PublishSendReport(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue scheduled report")
			return
		}
		log.Info().Str("job_id", job.JobID).Msg("Scheduled report enqueued")
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", *schedule).Msg("Invalid report schedule")
	}

	scheduler.Start()
	log.Info().Str("schedule", *schedule).Msg("Reporter started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down reporter...")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Reporter exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
