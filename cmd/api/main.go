package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pepmo/voucher-ops/internal/api/handlers"
	"github.com/pepmo/voucher-ops/internal/api/middleware"
	"github.com/pepmo/voucher-ops/internal/archive"
	"github.com/pepmo/voucher-ops/internal/jobs"
	"github.com/pepmo/voucher-ops/internal/jobs/inmemory"
	"github.com/pepmo/voucher-ops/internal/logger"
	"github.com/pepmo/voucher-ops/internal/provider"
	"github.com/pepmo/voucher-ops/internal/report"
	"github.com/pepmo/voucher-ops/internal/results"
)

const defaultUpstream = "https://nexus.payppy.app/api/dashboard/v2/voucher-transactions"

func main() {
	// Parse command-line flags
	var (
		port     = flag.String("port", "3001", "HTTP server port")
		upstream = flag.String("upstream", envOr("UPSTREAM_BASE_URL", defaultUpstream), "Upstream voucher-transactions API base URL (or set UPSTREAM_BASE_URL env)")
		bucket   = flag.String("bucket", os.Getenv("REPORT_BUCKET"), "GCS bucket for report archival (or set REPORT_BUCKET env); empty disables archival")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New("api")

	recipients := splitRecipients(os.Getenv("REPORT_RECIPIENTS"))
	if len(recipients) == 0 {
		log.Warn().Msg("No REPORT_RECIPIENTS configured - report jobs need explicit recipients")
	}

	// Upstream client and result cache
	client := provider.NewClient(*upstream, log)
	resultStore := results.NewMemoryStore()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Report builder: mailer from env, archive only when a bucket is set
	var archiver report.Archiver
	if *bucket != "" {
		archiver = archive.NewUploader(*bucket)
	} else {
		log.Warn().Msg("No report bucket configured - report archival disabled")
	}
	builder := report.NewBuilder(client, report.NewMailer(report.SMTPConfigFromEnv()), archiver, recipients, log)

	// Start worker in background to process report jobs
	ctx := context.Background()
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reportJob, ok := job.(*jobs.SendReportJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reportJob.JobID).
			Str("report_date", reportJob.ReportDate).
			Msg("Processing report job")

		if err := builder.Run(ctx, reportJob); err != nil {
			log.Error().
				Err(err).
				Str("job_id", reportJob.JobID).
				Msg("Report job failed")
			return err
		}

		log.Info().Str("job_id", reportJob.JobID).Msg("Report job completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting report job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Report job worker stopped with error")
		}
	}()

	// Initialize handlers
	vouchersHandler := handlers.NewVouchersHandler(client, resultStore, log)
	reportsHandler := handlers.NewReportsHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/voucher-transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			vouchersHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/voucher-transactions/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			vouchersHandler.ExportCSV(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/voucher-transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Drawer detail: /api/voucher-transactions/{user_id}/{order_id}
		rest := strings.TrimPrefix(r.URL.Path, "/api/voucher-transactions/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			middleware.WriteError(w, http.StatusBadRequest, "user_id and order_id are required")
			return
		}
		vouchersHandler.Detail(w, r, parts[0], parts[1])
	})

	mux.HandleFunc("/api/reports/send", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			reportsHandler.EnqueueSend(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(os.Getenv("API_TOKEN"))(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("upstream", *upstream).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
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
