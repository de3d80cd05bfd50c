package billing

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var maxTaxRate = decimal.NewFromInt(100)

// LineItemInput is one requested invoice line
type LineItemInput struct {
	Description string
	Quantity    int
	Rate        decimal.Decimal
}

// Totals is the output of CalculateTotals. All fields are rounded to two
// fractional digits and Total always equals Subtotal + TaxAmount exactly.
type Totals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	LineAmounts []decimal.Decimal
}

// ValidateTaxRate checks the rate lies in [0, 100] with at most two decimal
// places, the precision of the stored tax_rate column.
func ValidateTaxRate(taxRate decimal.Decimal) error {
	if taxRate.IsNegative() || taxRate.GreaterThan(maxTaxRate) {
		return shared.NewValidationError(CodeInvalidTaxRate, "Tax rate must be between 0 and 100")
	}
	if !taxRate.Equal(taxRate.Round(valueobject.Scale)) {
		return shared.NewValidationError(CodeInvalidTaxRate, "Tax rate cannot have more than two decimal places")
	}
	return nil
}

// ValidateLineItem checks a single line: quantity >= 1, rate >= 0 and rate
// expressed in whole cents.
func ValidateLineItem(index int, item LineItemInput) error {
	if item.Quantity < 1 {
		return shared.NewValidationError(CodeInvalidQuantity,
			fmt.Sprintf("Item %d: quantity must be a positive integer", index+1))
	}
	if item.Rate.IsNegative() {
		return shared.NewValidationError(CodeInvalidRate,
			fmt.Sprintf("Item %d: rate cannot be negative", index+1))
	}
	if !item.Rate.Equal(item.Rate.Round(valueobject.Scale)) {
		return shared.NewValidationError(CodeInvalidRate,
			fmt.Sprintf("Item %d: rate cannot have more than two decimal places", index+1))
	}
	return nil
}

// CalculateTotals derives subtotal, tax and total from line items.
//
// Line amounts and the subtotal are exact because quantities are integers and
// rates are whole cents. Tax is computed from the exact subtotal and rounded
// half-up once; total is the sum of the two rounded figures.
func CalculateTotals(items []LineItemInput, taxRate decimal.Decimal) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, shared.NewValidationError(CodeNoItems, "An invoice needs at least one item")
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, err
	}

	lines := make([]decimal.Decimal, len(items))
	subtotal := valueobject.Zero()
	for i, item := range items {
		if err := ValidateLineItem(i, item); err != nil {
			return Totals{}, err
		}
		amount := valueobject.NewMoney(item.Rate).MulInt(int64(item.Quantity))
		lines[i] = amount.Rounded().Amount()
		subtotal = subtotal.Add(amount)
	}

	tax := subtotal.Percent(taxRate).Rounded()
	subtotal = subtotal.Rounded()

	return Totals{
		Subtotal:    subtotal.Amount(),
		TaxAmount:   tax.Amount(),
		Total:       subtotal.Add(tax).Amount(),
		LineAmounts: lines,
	}, nil
}
