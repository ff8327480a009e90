// Package pricing computes order and invoice amounts. All arithmetic runs on
// decimals and is rounded to two places per line, so invoice lines always add
// up to the invoice totals.
package pricing

import (
	"sort"
	"strings"

	"bookshop/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InterState reports whether goods ship out of the store's state, which
// switches the tax from CGST+SGST to IGST.
func InterState(storeState, destState string) bool {
	if storeState == "" || destState == "" {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(storeState), strings.TrimSpace(destState))
}

// effectiveRates picks the rates that apply to one line. Products without
// their own rates use the store-wide rate, split evenly for intra-state
// supply.
func effectiveRates(t models.TaxRates, storeRate float64, interState bool) (cgst, sgst, igst decimal.Decimal) {
	zero := decimal.Zero
	if t.IsZero() {
		rate := decimal.NewFromFloat(storeRate)
		if interState {
			return zero, zero, rate
		}
		half := rate.Div(decimal.NewFromInt(2))
		return half, half, zero
	}
	if interState {
		igst = decimal.NewFromFloat(t.IGST)
		if igst.IsZero() {
			igst = decimal.NewFromFloat(t.CGST).Add(decimal.NewFromFloat(t.SGST))
		}
		return zero, zero, igst
	}
	cgst, sgst = decimal.NewFromFloat(t.CGST), decimal.NewFromFloat(t.SGST)
	if cgst.IsZero() && sgst.IsZero() {
		half := decimal.NewFromFloat(t.IGST).Div(decimal.NewFromInt(2))
		return half, half, zero
	}
	return cgst, sgst, zero
}

func pct(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// ShippingCost applies the free-shipping threshold, then the tier with the
// highest MinSubtotal not above subtotal.
func ShippingCost(subtotal float64, s models.Settings) float64 {
	if s.FreeShippingThreshold > 0 && subtotal >= s.FreeShippingThreshold {
		return 0
	}
	tiers := append([]models.ShippingTier(nil), s.ShippingTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinSubtotal > tiers[j].MinSubtotal })
	for _, t := range tiers {
		if subtotal >= t.MinSubtotal {
			return t.Cost
		}
	}
	return 0
}

// Price fills in the tax and line totals of items and returns the matching
// invoice lines and order totals.
func Price(items []models.OrderItem, s models.Settings, interState bool) ([]models.InvoiceLine, models.Totals) {
	var subtotal, cgstTotal, sgstTotal, igstTotal decimal.Decimal
	lines := make([]models.InvoiceLine, 0, len(items))

	for i := range items {
		it := &items[i]
		unit := decimal.NewFromFloat(it.Price)
		taxable := unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)

		cr, sr, ir := effectiveRates(it.Tax, s.TaxRate, interState)
		cgst, sgst, igst := pct(taxable, cr), pct(taxable, sr), pct(taxable, ir)
		tax := cgst.Add(sgst).Add(igst)
		total := taxable.Add(tax)

		it.TaxAmount = tax.InexactFloat64()
		it.LineTotal = total.InexactFloat64()

		lines = append(lines, models.InvoiceLine{
			Name:      it.Name,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Taxable:   taxable.InexactFloat64(),
			CGST:      cgst.InexactFloat64(),
			SGST:      sgst.InexactFloat64(),
			IGST:      igst.InexactFloat64(),
			Total:     total.InexactFloat64(),
		})

		subtotal = subtotal.Add(taxable)
		cgstTotal = cgstTotal.Add(cgst)
		sgstTotal = sgstTotal.Add(sgst)
		igstTotal = igstTotal.Add(igst)
	}

	tax := cgstTotal.Add(sgstTotal).Add(igstTotal)
	shipping := decimal.NewFromFloat(ShippingCost(subtotal.InexactFloat64(), s)).Round(2)

	return lines, models.Totals{
		Subtotal: subtotal.InexactFloat64(),
		CGST:     cgstTotal.InexactFloat64(),
		SGST:     sgstTotal.InexactFloat64(),
		IGST:     igstTotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    subtotal.Add(tax).Add(shipping).InexactFloat64(),
	}
}

// MinorUnits converts an amount to paise for the payment gateway.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
