package recon

import (
	"testing"

	"github.com/pepmo/voucher-ops/internal/provider"
)

// pin builds a pinelabs record for walk tests. svc and ded are the raw
// upstream values; empty string means absent.
func pin(id, date, clock, status, svc, ded string) *provider.Record {
	return &provider.Record{
		OrderID:       id,
		Date:          date,
		Time:          clock,
		Provider:      provider.Pinelabs,
		VoucherStatus: status,
		SVCBalance:    provider.Number(svc),
		SVCDeduction:  provider.Number(ded),
	}
}

func fptr(v float64) *float64 { return &v }

func wantFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want %v", name, want)
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func wantNil(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("%s = %v, want nil", name, *got)
	}
}

func TestEnrichInteractive_CarryForward(t *testing.T) {
	// Previous day closed at 100, today's sole transaction reports the
	// same balance with no deduction: nothing moved, no deposit.
	txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "100.0", "0")
	records := []*provider.Record{txn}

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "opening", txn.OpeningBalance, 100.0)
	wantFloat(t, "closing", txn.ClosingBalance, 100.0)
	wantFloat(t, "deposit", txn.Deposit, 0)
}

func TestEnrichInteractive_DepositDetected(t *testing.T) {
	// Balance jumped from 100 to 150 with no deduction: a 50 top-up
	// landed alongside this transaction.
	txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "150.0", "0")
	records := []*provider.Record{txn}

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "opening", txn.OpeningBalance, 100.0)
	wantFloat(t, "closing", txn.ClosingBalance, 150.0)
	wantFloat(t, "deposit", txn.Deposit, 50.0)
}

func TestEnrichInteractive_DeductionExplainsDrop(t *testing.T) {
	// 20 deducted, balance fell to exactly the expected 80: no deposit.
	txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "80.0", "20")
	records := []*provider.Record{txn}

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "deposit", txn.Deposit, 0)
}

func TestEnrichInteractive_MissingBalanceCarries(t *testing.T) {
	// The second transaction reports no svc_balance; its closing must
	// carry the first transaction's closing unchanged.
	first := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "70.0", "30")
	second := pin("ord-2", "2024-03-15", "11:00:00", "SUCCESS", "", "0")
	records := []*provider.Record{second, first} // unordered input

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "first closing", first.ClosingBalance, 70.0)
	wantFloat(t, "second opening", second.OpeningBalance, 70.0)
	wantFloat(t, "second closing", second.ClosingBalance, 70.0)
	wantFloat(t, "second deposit", second.Deposit, 0)
}

func TestEnrichInteractive_EpsilonBoundary(t *testing.T) {
	tests := []struct {
		name        string
		svc         string
		wantDeposit float64
	}{
		{"diff equal to epsilon does not fire", "0.0001", 0},
		{"diff above epsilon fires", "0.0002", 0.0002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", tt.svc, "0")
			EnrichInteractive([]*provider.Record{txn}, fptr(0))
			wantFloat(t, "deposit", txn.Deposit, tt.wantDeposit)
		})
	}
}

func TestEnrichInteractive_NoBaseline(t *testing.T) {
	// No previous-day data: the first transaction has no opening balance
	// and cannot register a deposit; once a balance is reported the chain
	// picks up from there.
	first := pin("ord-1", "2024-03-15", "09:00:00", "SUCCESS", "", "0")
	second := pin("ord-2", "2024-03-15", "10:00:00", "SUCCESS", "50.0", "0")
	third := pin("ord-3", "2024-03-15", "11:00:00", "SUCCESS", "", "0")
	records := []*provider.Record{first, second, third}

	EnrichInteractive(records, nil)

	wantNil(t, "first opening", first.OpeningBalance)
	wantNil(t, "first closing", first.ClosingBalance)
	wantFloat(t, "first deposit", first.Deposit, 0)

	wantNil(t, "second opening", second.OpeningBalance)
	wantFloat(t, "second closing", second.ClosingBalance, 50.0)
	wantFloat(t, "second deposit", second.Deposit, 0)

	wantFloat(t, "third opening", third.OpeningBalance, 50.0)
	wantFloat(t, "third closing", third.ClosingBalance, 50.0)
}

func TestEnrichInteractive_NonPinelabsCleared(t *testing.T) {
	gyftr := &provider.Record{
		OrderID:       "gy-1",
		Date:          "2024-03-15",
		Time:          "10:30:00",
		Provider:      provider.Gyftr,
		VoucherStatus: "SUCCESS",
		SVCBalance:    "999",
	}
	pinTxn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "100.0", "0")
	records := []*provider.Record{pinTxn, gyftr}

	EnrichInteractive(records, fptr(100.0))

	wantNil(t, "gyftr opening", gyftr.OpeningBalance)
	wantNil(t, "gyftr closing", gyftr.ClosingBalance)
	wantNil(t, "gyftr deposit", gyftr.Deposit)
	wantFloat(t, "pinelabs closing", pinTxn.ClosingBalance, 100.0)
}

func TestEnrichInteractive_MalformedNumbers(t *testing.T) {
	// A garbage svc_balance means "not reported": carry the opening. A
	// garbage deduction counts as zero, so a balance jump still registers.
	carry := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "not-a-number", "0")
	jump := pin("ord-2", "2024-03-15", "11:00:00", "SUCCESS", "120.0", "n/a")
	records := []*provider.Record{carry, jump}

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "carry closing", carry.ClosingBalance, 100.0)
	wantFloat(t, "jump deposit", jump.Deposit, 20.0)
}

func TestEnrichInteractive_TimestampTiesKeepUpstreamOrder(t *testing.T) {
	// Two transactions at the same second: the walk must keep upstream
	// order, so the second one opens at the first one's closing.
	first := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "90.0", "10")
	second := pin("ord-2", "2024-03-15", "10:00:00", "SUCCESS", "", "0")
	records := []*provider.Record{first, second}

	EnrichInteractive(records, fptr(100.0))

	wantFloat(t, "second opening", second.OpeningBalance, 90.0)
}

func TestDepositsNeverNegative(t *testing.T) {
	// A balance drop larger than the deduction must not produce a
	// negative deposit under either variant.
	build := func() []*provider.Record {
		return []*provider.Record{
			pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "50.0", "0"),
			pin("ord-2", "2024-03-15", "11:00:00", "SUCCESS", "10.0", "5"),
		}
	}

	variants := map[string]func([]*provider.Record, *float64){
		"interactive": EnrichInteractive,
		"report":      EnrichReport,
	}

	for name, enrich := range variants {
		t.Run(name, func(t *testing.T) {
			records := build()
			enrich(records, fptr(100.0))
			for _, txn := range records {
				if txn.Deposit == nil {
					t.Fatalf("%s: deposit not set", txn.OrderID)
				}
				if *txn.Deposit < 0 {
					t.Errorf("%s: deposit = %v, want >= 0", txn.OrderID, *txn.Deposit)
				}
			}
		})
	}
}

func TestEnrichReport_NonSuccessIgnoresBalance(t *testing.T) {
	// The report variant trusts svc_balance only on settled transactions;
	// a failed one carries the opening even when a balance is present.
	txn := pin("ord-1", "2024-03-15", "10:00:00", "FAILED", "500.0", "0")
	records := []*provider.Record{txn}

	EnrichReport(records, fptr(100.0))

	wantFloat(t, "opening", txn.OpeningBalance, 100.0)
	wantFloat(t, "closing", txn.ClosingBalance, 100.0)
	wantFloat(t, "deposit", txn.Deposit, 0)
}

func TestEnrichReport_FirstRecordNeverDeposits(t *testing.T) {
	// Same jump that the interactive variant flags as a 50 deposit; the
	// report variant forces the day's first transaction to zero.
	txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "150.0", "0")
	records := []*provider.Record{txn}

	EnrichReport(records, fptr(100.0))

	wantFloat(t, "closing", txn.ClosingBalance, 150.0)
	wantFloat(t, "deposit", txn.Deposit, 0)
}

func TestEnrichReport_ChainAndClearing(t *testing.T) {
	first := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "80.0", "20")
	second := pin("ord-2", "2024-03-15", "11:00:00", "SUCCESS", "", "0")
	gyftr := &provider.Record{
		OrderID:  "gy-1",
		Date:     "2024-03-15",
		Time:     "12:00:00",
		Provider: provider.Gyftr,
	}
	records := []*provider.Record{gyftr, second, first}

	EnrichReport(records, fptr(100.0))

	wantFloat(t, "first opening", first.OpeningBalance, 100.0)
	wantFloat(t, "first closing", first.ClosingBalance, 80.0)
	wantFloat(t, "second opening", second.OpeningBalance, 80.0)
	wantFloat(t, "second closing", second.ClosingBalance, 80.0)
	wantNil(t, "gyftr deposit", gyftr.Deposit)
}

func TestEnrichReport_OpeningTracksRecordedClosing(t *testing.T) {
	// The report rule compares each opening against the previous recorded
	// closing. Because openings are carried from that same closing, a
	// balance jump shows up in the closing, not the opening, and the
	// deposit stays zero; the jump itself is what the interactive variant
	// exists to catch.
	first := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "100.0", "0")
	second := pin("ord-2", "2024-03-15", "11:00:00", "SUCCESS", "400.0", "")
	records := []*provider.Record{first, second}

	EnrichReport(records, fptr(100.0))

	wantFloat(t, "second opening", second.OpeningBalance, 100.0)
	wantFloat(t, "second closing", second.ClosingBalance, 400.0)
	wantFloat(t, "second deposit", second.Deposit, 0)
}

func TestEnrichReport_NoBaseline(t *testing.T) {
	txn := pin("ord-1", "2024-03-15", "10:00:00", "SUCCESS", "", "0")
	records := []*provider.Record{txn}

	EnrichReport(records, nil)

	wantNil(t, "opening", txn.OpeningBalance)
	wantNil(t, "closing", txn.ClosingBalance)
	wantFloat(t, "deposit", txn.Deposit, 0)
}
