package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pepmo/voucher-ops/internal/jobs"
	"github.com/pepmo/voucher-ops/internal/provider"
	"github.com/pepmo/voucher-ops/internal/recon"
)

// DataSource is the upstream access the builder needs: the merged day fetch
// plus the pinelabs-only fetch used for carry-forward. Implemented by
// provider.Client.
type DataSource interface {
	FetchDay(ctx context.Context, date, filter string) provider.DayData
	FetchPinelabsDay(ctx context.Context, date string) ([]*provider.Record, error)
}

// Sender delivers a finished report to one recipient. Implemented by Mailer.
type Sender interface {
	SendReport(to string, subject, htmlBody string, attachment []byte, filename string) error
}

// Archiver stores a copy of the generated workbook. Optional.
type Archiver interface {
	UploadReport(ctx context.Context, objectName string, data []byte) error
}

// Builder produces and delivers the daily transactions report: both
// providers' sets for the report date, enriched with the report-variant
// balance walk, rendered to a workbook, mailed, and optionally archived.
type Builder struct {
	source     DataSource
	sender     Sender
	archiver   Archiver
	recipients []string
	log        zerolog.Logger
}

// NewBuilder creates a report builder. archiver may be nil; recipients are
// the default when a job names none.
func NewBuilder(source DataSource, sender Sender, archiver Archiver, recipients []string, log zerolog.Logger) *Builder {
	return &Builder{
		source:     source,
		sender:     sender,
		archiver:   archiver,
		recipients: recipients,
		log:        log,
	}
}

// Run executes one report job. A day with no transactions is not an error:
// the job completes with nothing sent, matching how the upstream behaves on
// quiet days. Delivery failures are returned so the queue can retry.
func (b *Builder) Run(ctx context.Context, job *jobs.SendReportJob) error {
	date := job.ReportDate
	if date == "" {
		date = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	}

	recipients := job.Recipients
	if len(recipients) == 0 {
		recipients = b.recipients
	}
	if len(recipients) == 0 {
		return fmt.Errorf("report %s: no recipients configured", date)
	}

	day := b.source.FetchDay(ctx, date, provider.FilterAll)
	if len(day.Transactions) == 0 {
		b.log.Warn().Str("date", date).Msg("No transactions for report date, skipping send")
		return nil
	}

	prevClosing, err := recon.PreviousDayClosing(ctx, b.source, date)
	if err != nil {
		b.log.Warn().Err(err).Str("date", date).Msg("No carry-forward baseline for report")
	}
	recon.EnrichReport(day.Transactions, prevClosing)
	provider.SortNewestFirst(day.Transactions)

	workbook, err := BuildWorkbook(day.Transactions)
	if err != nil {
		return fmt.Errorf("report %s: %w", date, err)
	}

	filename := fmt.Sprintf("Pepmo_Report_%s.xlsx", date)
	subject := fmt.Sprintf("Pepmo Daily Transactions Report - %s", date)
	body := fmt.Sprintf("<h3>Pepmo Daily Report</h3><p>Attached is the Excel report for <b>%s</b>.</p>", date)

	var sendErr error
	sent := 0
	for _, to := range recipients {
		if err := b.sender.SendReport(to, subject, body, workbook, filename); err != nil {
			b.log.Error().Err(err).Str("recipient", to).Str("date", date).Msg("Report delivery failed")
			sendErr = err
			continue
		}
		sent++
	}

	if b.archiver != nil {
		objectName := fmt.Sprintf("reports/%s/%s", date, filename)
		if err := b.archiver.UploadReport(ctx, objectName, workbook); err != nil {
			// Archival is best-effort; the mailed copy is the deliverable.
			b.log.Error().Err(err).Str("object", objectName).Msg("Report archive upload failed")
		}
	}

	b.log.Info().
		Str("date", date).
		Int("transactions", len(day.Transactions)).
		Int("recipients", sent).
		Msg("Daily report processed")

	if sendErr != nil {
		return fmt.Errorf("report %s: %d of %d deliveries failed: %w", date, len(recipients)-sent, len(recipients), sendErr)
	}
	return nil
}
