package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []LineItemInput
		taxRate  string
		subtotal string
		tax      string
		total    string
	}{
		{"single line with tax", []LineItemInput{item(2, "100")}, "10", "200.00", "20.00", "220.00"},
		{"no tax", []LineItemInput{item(3, "19.99")}, "0", "59.97", "0.00", "59.97"},
		{"multiple lines", []LineItemInput{item(1, "10.10"), item(2, "0.45")}, "20", "11.00", "2.20", "13.20"},
		{"fractional tax rounds half up", []LineItemInput{item(1, "33.33")}, "7.5", "33.33", "2.50", "35.83"},
		{"half cent rounds away from zero", []LineItemInput{item(1, "0.05")}, "10", "0.05", "0.01", "0.06"},
		{"full tax rate", []LineItemInput{item(1, "12.34")}, "100", "12.34", "12.34", "24.68"},
		{"free line", []LineItemInput{item(5, "0")}, "10", "0.00", "0.00", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := CalculateTotals(tt.items, dec(tt.taxRate))
			require.NoError(t, err)
			requireDecimal(t, tt.subtotal, totals.Subtotal)
			requireDecimal(t, tt.tax, totals.TaxAmount)
			requireDecimal(t, tt.total, totals.Total)
			assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.TaxAmount)))
			assert.Len(t, totals.LineAmounts, len(tt.items))
		})
	}
}

func TestCalculateTotals_LineAmounts(t *testing.T) {
	totals, err := CalculateTotals([]LineItemInput{item(2, "100"), item(3, "0.33")}, dec("0"))
	require.NoError(t, err)
	requireDecimal(t, "200", totals.LineAmounts[0])
	requireDecimal(t, "0.99", totals.LineAmounts[1])
	requireDecimal(t, "200.99", totals.Subtotal)
}

func TestCalculateTotals_Errors(t *testing.T) {
	tests := []struct {
		name    string
		items   []LineItemInput
		taxRate string
		code    string
	}{
		{"empty items", nil, "10", CodeNoItems},
		{"zero quantity", []LineItemInput{item(0, "10")}, "10", CodeInvalidQuantity},
		{"negative quantity", []LineItemInput{item(-1, "10")}, "10", CodeInvalidQuantity},
		{"negative rate", []LineItemInput{item(1, "-0.01")}, "10", CodeInvalidRate},
		{"sub-cent rate", []LineItemInput{item(1, "1.005")}, "10", CodeInvalidRate},
		{"negative tax", []LineItemInput{item(1, "10")}, "-1", CodeInvalidTaxRate},
		{"tax above 100", []LineItemInput{item(1, "10")}, "100.01", CodeInvalidTaxRate},
		{"sub-hundredth tax", []LineItemInput{item(1, "1000.00")}, "7.125", CodeInvalidTaxRate},
		{"bad second line", []LineItemInput{item(1, "10"), item(0, "5")}, "0", CodeInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateTotals(tt.items, dec(tt.taxRate))
			requireCode(t, err, tt.code)
		})
	}
}

func TestCalculateTotals_HundredthTaxRate(t *testing.T) {
	totals, err := CalculateTotals([]LineItemInput{item(1, "1000.00")}, dec("7.13"))
	require.NoError(t, err)
	requireDecimal(t, "71.30", totals.TaxAmount)
	requireDecimal(t, "1071.30", totals.Total)
}
