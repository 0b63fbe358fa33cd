package documents

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/invoicing"
)

var printer = message.NewPrinter(language.Japanese)

// Yen formats an amount as whole yen with digit grouping.
func Yen(d decimal.Decimal) string {
	v := d.Round(0).IntPart()
	if v < 0 {
		return printer.Sprintf("-¥%d", -v)
	}
	return printer.Sprintf("¥%d", v)
}

// Quantity formats a quantity with grouping and without trailing zeros.
func Quantity(d decimal.Decimal) string {
	if d.IsInteger() {
		return printer.Sprintf("%d", d.IntPart())
	}
	return d.String()
}

func date(t time.Time) string {
	return t.Format("2006/01/02")
}

func putTaxLines(fields FieldMap, lines []invoicing.TaxLine) {
	for _, rate := range []delivery.TaxRate{delivery.TaxReduced, delivery.TaxStandard} {
		subtotal, tax := decimal.Zero, decimal.Zero
		for _, l := range lines {
			if l.Rate == rate {
				subtotal, tax = l.Subtotal, l.Tax
			}
		}
		suffix := strconv.Itoa(int(rate))
		fields["subtotal_"+suffix] = Yen(subtotal)
		fields["tax_"+suffix] = Yen(tax)
	}
}

// RenderDelivery flattens a delivery slip. Return notes are labelled and
// keep positive amounts.
func RenderDelivery(d delivery.Delivery) FieldMap {
	kind := "Delivery"
	if d.Type == delivery.TypeReturn {
		kind = "Return"
	}
	fields := FieldMap{
		TitleField:        fmt.Sprintf("%s %s %s", kind, deliveryNumber(d.ID), d.CustomerName),
		"document_number": deliveryNumber(d.ID),
		"document_date":   date(d.DeliveryDate),
		"customer_name":   d.CustomerName,
		"note":            d.Notes,
	}
	byRate := make(map[delivery.TaxRate]decimal.Decimal)
	for i, it := range d.Items {
		n := i + 1
		fields[LineField(n, "product_name")] = it.ProductName
		fields[LineField(n, "quantity")] = Quantity(it.Quantity)
		fields[LineField(n, "unit")] = it.Unit
		fields[LineField(n, "unit_price")] = Yen(it.UnitPrice)
		fields[LineField(n, "amount")] = Yen(it.Amount)
		fields[LineField(n, "tax_rate")] = fmt.Sprintf("%d%%", it.TaxRate)
		byRate[it.TaxRate] = byRate[it.TaxRate].Add(it.Amount)
	}
	lines, taxTotal := invoicing.SplitTax(byRate)
	putTaxLines(fields, lines)
	fields["total_amount"] = Yen(d.TotalAmount)
	fields["tax_total"] = Yen(taxTotal)
	fields["grand_total"] = Yen(d.TotalAmount.Add(taxTotal))
	return fields
}

// InvoiceParty is the billed customer as printed on the invoice.
type InvoiceParty struct {
	Name               string
	RegistrationNumber string
}

// RenderInvoice flattens an invoice and the deliveries it claims. Return
// notes print negative.
func RenderInvoice(inv invoicing.Invoice, party InvoiceParty, deliveries []delivery.Delivery) FieldMap {
	fields := FieldMap{
		TitleField:            fmt.Sprintf("Invoice %s %s", inv.Number, party.Name),
		"document_number":     inv.Number,
		"document_date":       date(inv.IssueDate),
		"due_date":            date(inv.DueDate),
		"customer_name":       party.Name,
		"registration_number": party.RegistrationNumber,
		"billing_period":      fmt.Sprintf("%04d/%02d", inv.Year, inv.Month),
		"total_amount":        Yen(inv.TotalAmount),
		"tax_total":           Yen(inv.TaxTotal),
		"grand_total":         Yen(inv.GrandTotal),
	}
	putTaxLines(fields, inv.TaxLines)
	for i, d := range deliveries {
		n := i + 1
		amount := d.TotalAmount
		kind := "Delivery"
		if d.Type == delivery.TypeReturn {
			amount = amount.Neg()
			kind = "Return"
		}
		fields[LineField(n, "delivery_date")] = date(d.DeliveryDate)
		fields[LineField(n, "delivery_number")] = deliveryNumber(d.ID)
		fields[LineField(n, "kind")] = kind
		fields[LineField(n, "amount")] = Yen(amount)
	}
	return fields
}

func deliveryNumber(id int64) string {
	return fmt.Sprintf("D-%06d", id)
}
