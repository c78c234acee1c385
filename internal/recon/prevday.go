package recon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pepmo/voucher-ops/internal/provider"
)

// Accepted query date formats. ISO is tried first; the dashboard UI
// historically submitted DD/MM/YYYY.
const (
	dateLayoutISO = "2006-01-02"
	dateLayoutDMY = "02/01/2006"
)

// DayFetcher is the one upstream dependency the engine has: fetching a
// day's pinelabs transaction set for carry-forward. Implemented by
// provider.Client.
type DayFetcher interface {
	FetchPinelabsDay(ctx context.Context, date string) ([]*provider.Record, error)
}

// ParseQueryDate parses a dashboard date string in either supported format.
func ParseQueryDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayoutISO, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayoutDMY, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q matches neither %s nor %s", s, dateLayoutISO, dateLayoutDMY)
	}
	return t, nil
}

// PreviousDayClosing returns the carry-forward baseline for a query date:
// the svc_balance of the previous day's most recent successful pinelabs
// transaction. Every failure path (unparseable date, upstream error, empty
// day, no successful transaction, unparseable balance) yields a nil balance
// plus the reason; callers log the reason and treat nil as "no known
// opening balance", never as a request failure.
func PreviousDayClosing(ctx context.Context, source DayFetcher, dateStr string) (*float64, error) {
	day, err := ParseQueryDate(dateStr)
	if err != nil {
		return nil, err
	}

	prevDate := day.AddDate(0, 0, -1).Format(dateLayoutISO)

	records, err := source.FetchPinelabsDay(ctx, prevDate)
	if err != nil {
		return nil, fmt.Errorf("previous day %s: %w", prevDate, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("previous day %s: no transactions", prevDate)
	}

	// Newest first; the first settled transaction holds the day's final
	// reported balance.
	sorted := append([]*provider.Record{}, records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Timestamp().Before(sorted[i].Timestamp())
	})

	for _, txn := range sorted {
		if txn.VoucherStatus != provider.StatusSuccess {
			continue
		}
		if v := ParseOptionalFloat(txn.SVCBalance.String()); v != nil {
			return v, nil
		}
		return nil, fmt.Errorf("previous day %s: last successful transaction %s reports no balance", prevDate, txn.OrderID)
	}

	return nil, fmt.Errorf("previous day %s: no successful transaction", prevDate)
}
