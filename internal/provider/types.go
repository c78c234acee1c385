package provider

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Provider identifiers as assigned by the fetch layer. The upstream payload
// does not carry a provider field; records are tagged after fetching.
const (
	Pinelabs = "pinelabs"
	Gyftr    = "gyftr"

	// FilterAll requests both providers merged into one day set.
	FilterAll = "all"
)

// StatusSuccess is the only voucher_status value treated as a settled
// transaction for balance purposes.
const StatusSuccess = "SUCCESS"

// timestampLayout is the combined date+time format used by the upstream API.
const timestampLayout = "2006-01-02 15:04:05"

// Number holds a JSON field that the upstream sends inconsistently as a
// number, a numeric string, or null. The raw text is kept as-is; numeric
// interpretation is left to the reconciliation layer's coercion helper so
// every call site shares the same failure-to-null semantics.
type Number string

// UnmarshalJSON accepts string, number, or null.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	*n = Number(s)
	return nil
}

// MarshalJSON emits the raw value as a string, or null when empty.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

func (n Number) String() string { return string(n) }

// Record is one voucher transaction as reported by the upstream dashboard
// API, plus the provider tag assigned at fetch time and the three fields
// derived by the reconciliation engine.
type Record struct {
	OrderID  string `json:"order_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Provider string `json:"provider"`

	UserName        string `json:"user_name,omitempty"`
	Brand           string `json:"brand,omitempty"`
	Denomination    Number `json:"denomination,omitempty"`
	Qty             Number `json:"qty,omitempty"`
	RequestedAmount Number `json:"requested_amount,omitempty"`
	PaidByUser      Number `json:"paid_by_user,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	PaymentStatus   string `json:"payment_status,omitempty"`
	VoucherStatus   string `json:"voucher_status"`
	RefundStatus    string `json:"refund_status,omitempty"`

	SVCBalance   Number `json:"svc_balance,omitempty"`
	SVCDeduction Number `json:"svc_deduction,omitempty"`

	// Derived by the reconciliation engine. Nil for non-pinelabs records.
	OpeningBalance *float64 `json:"opening_balance"`
	ClosingBalance *float64 `json:"closing_balance"`
	Deposit        *float64 `json:"deposit"`
}

// Timestamp combines date and time into the sortable instant used for
// chronological sequencing. Records with unparseable timestamps sort to the
// beginning of the day rather than failing the walk.
func (r *Record) Timestamp() time.Time {
	t, err := time.Parse(timestampLayout, r.Date+" "+r.Time)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SortNewestFirst orders records for display and export, most recent
// transaction first. Stable, so exact-timestamp ties keep upstream order.
func SortNewestFirst(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[j].Timestamp().Before(records[i].Timestamp())
	})
}

// DayData is one day's transaction set for one provider, or for both
// providers merged, together with the upstream-reported aggregates.
type DayData struct {
	Transactions []*Record `json:"data"`
	TotalAmount  float64   `json:"total_amount"`
	TotalVolume  float64   `json:"total_volume"`
}
