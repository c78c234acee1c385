package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pepmo/voucher-ops/internal/provider"
)

// WriteCSV streams the transaction set as CSV in the shared export layout.
func WriteCSV(w io.Writer, records []*provider.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, txn := range records {
		for i, v := range rowValues(txn) {
			row[i] = csvCell(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row for %s: %w", txn.OrderID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
