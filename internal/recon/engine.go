// Package recon derives opening balances, closing balances, and detected
// deposits for pinelabs voucher transactions. A deposit is a store-value
// credit increase that the transaction's own deduction cannot explain, i.e.
// an out-of-band top-up that landed alongside the transaction.
//
// Two detection rules exist and are kept as separate named functions:
// EnrichInteractive backs the dashboard view, EnrichReport backs the
// scheduled mail report. They disagree on when a deposit fires; both
// pathways predate this service and their outputs are compared by operators,
// so neither may silently adopt the other's rule.
package recon

import (
	"sort"

	"github.com/pepmo/voucher-ops/internal/provider"
)

// Epsilon absorbs floating-point noise when comparing a reported closing
// balance against the expected one. A difference must strictly exceed this
// to count as a deposit.
const Epsilon = 0.0001

// balance is the derived triple recorded per order during a walk.
type balance struct {
	opening *float64
	closing *float64
	deposit float64
}

// EnrichInteractive walks the day's pinelabs transactions in chronological
// order and sets OpeningBalance, ClosingBalance, and Deposit on every record
// in the input. prevClosing is the previous day's last successful closing
// balance, or nil when unknown; with a nil baseline the first transaction
// cannot produce a deposit.
//
// A transaction's closing balance is the provider-reported svc_balance when
// parseable, otherwise the opening balance carries through unchanged. The
// deposit is the amount by which the closing balance exceeds
// opening - svc_deduction, beyond Epsilon.
func EnrichInteractive(records []*provider.Record, prevClosing *float64) {
	balances := make(map[string]balance)
	running := prevClosing

	for _, txn := range chronological(records) {
		opening := running

		closing := opening
		if v := ParseOptionalFloat(txn.SVCBalance.String()); v != nil {
			closing = v
		}

		deposit := 0.0
		if opening != nil && closing != nil {
			expected := *opening - DeductionOrZero(txn.SVCDeduction.String())
			if diff := *closing - expected; diff > Epsilon {
				deposit = diff
			}
		}

		running = closing
		balances[txn.OrderID] = balance{opening: opening, closing: closing, deposit: deposit}
	}

	apply(records, balances)
}

// EnrichReport is the report-pathway variant. It differs from
// EnrichInteractive in two ways: a reported svc_balance is trusted only when
// the transaction's voucher_status is SUCCESS, and a deposit fires only when
// a transaction's opening balance exceeds the previous transaction's
// recorded closing balance while its own deduction is zero or absent. The
// first transaction of the day never carries a deposit.
func EnrichReport(records []*provider.Record, prevClosing *float64) {
	sorted := chronological(records)
	balances := make(map[string]balance)
	running := prevClosing

	for i, txn := range sorted {
		var svc *float64
		if txn.VoucherStatus == provider.StatusSuccess {
			svc = ParseOptionalFloat(txn.SVCBalance.String())
		}

		opening := running
		closing := opening
		if svc != nil {
			closing = svc
		}
		running = closing

		deposit := 0.0
		if i > 0 {
			prevBal := balances[sorted[i-1].OrderID].closing
			if opening != nil && prevBal != nil && *opening > *prevBal && deductionIsZero(txn.SVCDeduction.String()) {
				deposit = *opening - *prevBal
			}
		}

		balances[txn.OrderID] = balance{opening: opening, closing: closing, deposit: deposit}
	}

	apply(records, balances)
}

// chronological returns the pinelabs subset sorted ascending by combined
// timestamp. The sort is stable so exact-timestamp ties keep upstream order.
func chronological(records []*provider.Record) []*provider.Record {
	subset := make([]*provider.Record, 0, len(records))
	for _, txn := range records {
		if txn.Provider == provider.Pinelabs {
			subset = append(subset, txn)
		}
	}
	sort.SliceStable(subset, func(i, j int) bool {
		return subset[i].Timestamp().Before(subset[j].Timestamp())
	})
	return subset
}

// apply writes the recorded triples back onto every record. Non-pinelabs
// records get all three derived fields cleared; a pinelabs record that was
// somehow not walked gets nil balances and a zero deposit.
func apply(records []*provider.Record, balances map[string]balance) {
	for _, txn := range records {
		if txn.Provider != provider.Pinelabs {
			txn.OpeningBalance = nil
			txn.ClosingBalance = nil
			txn.Deposit = nil
			continue
		}
		b := balances[txn.OrderID]
		txn.OpeningBalance = b.opening
		txn.ClosingBalance = b.closing
		deposit := b.deposit
		txn.Deposit = &deposit
	}
}

// deductionIsZero reports whether an svc_deduction value means "no credit
// used": absent, empty, or numerically zero.
func deductionIsZero(raw string) bool {
	v := ParseOptionalFloat(raw)
	return v == nil || *v == 0
}
