package invoicing

import (
	"fmt"
	"time"

	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/shared"
)

// EndOfMonthPolicy decides which month end "endofmonth" terms refer to.
type EndOfMonthPolicy string

const (
	// NextMonthEnd dues on the last day of the month after issue.
	NextMonthEnd EndOfMonthPolicy = "next_month_end"
	// SameMonthEnd dues on the last day of the issue month.
	SameMonthEnd EndOfMonthPolicy = "same_month_end"
)

// ParseEndOfMonthPolicy validates a configured policy. Empty means NextMonthEnd.
func ParseEndOfMonthPolicy(value string) (EndOfMonthPolicy, error) {
	switch EndOfMonthPolicy(value) {
	case "", NextMonthEnd:
		return NextMonthEnd, nil
	case SameMonthEnd:
		return SameMonthEnd, nil
	}
	return "", fmt.Errorf("invoicing: unknown end-of-month policy %q", value)
}

var termDays = map[customers.PaymentTerms]int{
	customers.Terms7Days:  7,
	customers.Terms15Days: 15,
	customers.Terms30Days: 30,
	customers.Terms60Days: 60,
}

// DueDate applies payment terms to an issue date. Unknown terms fall back to
// thirty days.
func DueDate(terms customers.PaymentTerms, issue time.Time, policy EndOfMonthPolicy) time.Time {
	issue = shared.Date(issue)
	switch terms {
	case customers.TermsImmediate:
		return issue
	case customers.TermsEndOfMonth:
		if policy == SameMonthEnd {
			return shared.EndOfMonth(issue)
		}
		firstOfNext := time.Date(issue.Year(), issue.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return shared.EndOfMonth(firstOfNext)
	}
	if days, ok := termDays[terms]; ok {
		return issue.AddDate(0, 0, days)
	}
	return issue.AddDate(0, 0, 30)
}

// invoiceNumber formats INV-YYYYMM-<customer>-<seq>.
func invoiceNumber(year, month int, customerID int64, seq int) string {
	return fmt.Sprintf("INV-%04d%02d-%d-%d", year, month, customerID, seq)
}
