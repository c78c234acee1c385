// Command recon reconciles one day's voucher transactions and writes the
// enriched set as CSV to stdout. Useful for spot-checking a day without
// going through the dashboard.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/pepmo/voucher-ops/internal/logger"
	"github.com/pepmo/voucher-ops/internal/provider"
	"github.com/pepmo/voucher-ops/internal/recon"
	"github.com/pepmo/voucher-ops/internal/report"
)

const defaultUpstream = "https://nexus.payppy.app/api/dashboard/v2/voucher-transactions"

func main() {
	var (
		date     = flag.String("date", time.Now().Format("2006-01-02"), "Query date (YYYY-MM-DD or DD/MM/YYYY)")
		prov     = flag.String("provider", provider.FilterAll, "Provider filter: pinelabs, gyftr, or all")
		variant  = flag.String("variant", "interactive", "Balance walk variant: interactive or report")
		upstream = flag.String("upstream", envOr("UPSTREAM_BASE_URL", defaultUpstream), "Upstream voucher-transactions API base URL")
	)
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr)

	if _, err := recon.ParseQueryDate(*date); err != nil {
		log.Fatal().Err(err).Msg("Invalid date")
	}

	ctx := context.Background()
	client := provider.NewClient(*upstream, log)

	day := client.FetchDay(ctx, *date, *prov)
	if len(day.Transactions) == 0 {
		log.Warn().Str("date", *date).Msg("No transactions")
	}

	prevClosing, err := recon.PreviousDayClosing(ctx, client, *date)
	if err != nil {
		log.Warn().Err(err).Msg("No carry-forward baseline")
	}

	switch *variant {
	case "interactive":
		recon.EnrichInteractive(day.Transactions, prevClosing)
	case "report":
		recon.EnrichReport(day.Transactions, prevClosing)
	default:
		log.Fatal().Str("variant", *variant).Msg("Unknown variant")
	}

	provider.SortNewestFirst(day.Transactions)

	if err := report.WriteCSV(os.Stdout, day.Transactions); err != nil {
		log.Fatal().Err(err).Msg("CSV write failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
