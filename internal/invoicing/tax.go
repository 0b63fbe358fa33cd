package invoicing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/delivery"
)

var hundred = decimal.NewFromInt(100)

// sign returns -1 for return notes and 1 otherwise. Return amounts are stored
// as positive magnitudes; this is the only place they turn negative.
func sign(t delivery.Type) decimal.Decimal {
	if t == delivery.TypeReturn {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// taxFor rounds the tax of a rate subtotal down to whole yen. Negative
// subtotals round toward zero so a credit never exceeds the matching charge.
func taxFor(subtotal decimal.Decimal, rate delivery.TaxRate) decimal.Decimal {
	tax := subtotal.Abs().Mul(decimal.NewFromInt(int64(rate))).Div(hundred).Floor()
	if subtotal.IsNegative() {
		return tax.Neg()
	}
	return tax
}

// SplitTax turns signed per-rate subtotals into tax lines ordered by rate,
// computing tax once per rate.
func SplitTax(byRate map[delivery.TaxRate]decimal.Decimal) ([]TaxLine, decimal.Decimal) {
	rates := make([]delivery.TaxRate, 0, len(byRate))
	for rate := range byRate {
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })

	lines := make([]TaxLine, 0, len(rates))
	total := decimal.Zero
	for _, rate := range rates {
		tax := taxFor(byRate[rate], rate)
		lines = append(lines, TaxLine{Rate: rate, Subtotal: byRate[rate], Tax: tax})
		total = total.Add(tax)
	}
	return lines, total
}

// aggregate groups pending deliveries by customer, inverting return notes.
// The result is ordered by customer id.
func aggregate(deliveries []PendingDelivery) []CustomerSummary {
	type acc struct {
		summary CustomerSummary
		byRate  map[delivery.TaxRate]decimal.Decimal
	}
	byCustomer := make(map[int64]*acc)
	var order []int64
	for _, d := range deliveries {
		a, ok := byCustomer[d.Customer.ID]
		if !ok {
			a = &acc{
				summary: CustomerSummary{CustomerInfo: d.Customer, TotalAmount: decimal.Zero},
				byRate:  make(map[delivery.TaxRate]decimal.Decimal),
			}
			byCustomer[d.Customer.ID] = a
			order = append(order, d.Customer.ID)
		}
		s := sign(d.Type)
		a.summary.DeliveryCount++
		a.summary.TotalAmount = a.summary.TotalAmount.Add(d.TotalAmount.Mul(s))
		a.summary.DeliveryIDs = append(a.summary.DeliveryIDs, d.ID)
		for rate, amount := range d.ByRate {
			a.byRate[rate] = a.byRate[rate].Add(amount.Mul(s))
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]CustomerSummary, 0, len(order))
	for _, id := range order {
		a := byCustomer[id]
		a.summary.TaxLines, a.summary.TaxTotal = SplitTax(a.byRate)
		a.summary.GrandTotal = a.summary.TotalAmount.Add(a.summary.TaxTotal)
		out = append(out, a.summary)
	}
	return out
}
