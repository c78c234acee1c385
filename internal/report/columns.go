package report

import "github.com/pepmo/voucher-ops/internal/provider"

// columns is the export column order, shared by the CSV download and the
// Excel report so operators see identical layouts in both.
var columns = []string{
	"date",
	"time",
	"order_id",
	"provider",
	"user_name",
	"brand",
	"denomination",
	"qty",
	"requested_amount",
	"paid_by_user",
	"svc_deduction",
	"opening_balance",
	"closing_balance",
	"deposit",
	"payment_method",
	"payment_status",
	"voucher_status",
	"refund_status",
	"svc_balance",
}

// rowValues maps one record into the export column order. Unknown balances
// stay nil so spreadsheet cells render blank rather than as zero.
func rowValues(txn *provider.Record) []interface{} {
	return []interface{}{
		txn.Date,
		txn.Time,
		txn.OrderID,
		txn.Provider,
		txn.UserName,
		txn.Brand,
		txn.Denomination.String(),
		txn.Qty.String(),
		txn.RequestedAmount.String(),
		txn.PaidByUser.String(),
		txn.SVCDeduction.String(),
		floatCell(txn.OpeningBalance),
		floatCell(txn.ClosingBalance),
		floatCell(txn.Deposit),
		txn.PaymentMethod,
		txn.PaymentStatus,
		txn.VoucherStatus,
		txn.RefundStatus,
		txn.SVCBalance.String(),
	}
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
