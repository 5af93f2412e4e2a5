package render

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVND(t *testing.T) {
	tests := map[string]string{
		"0":       "0 VND",
		"999":     "999 VND",
		"300000":  "300.000 VND",
		"1234567": "1.234.567 VND",
		"-270000": "-270.000 VND",
		"4500.4":  "4.500 VND",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatVND(decimal.RequireFromString(in)), in)
	}
}

func TestRenderPDF(t *testing.T) {
	out, err := NewRenderer().RenderPDF(Document{
		InvoiceID:     "1850000000000000000",
		Status:        "partially_paid",
		IssuedOn:      "2026-10-01",
		PeriodName:    "October 2026",
		PeriodRange:   "2026-10-01 - 2026-10-31",
		HouseholdCode: "A101",
		OwnerName:     "Nguyen Van A",
		ApartmentNo:   "A101",
		BuildingName:  "B1",
		Lines: []Line{{
			FeeTypeName: "Service",
			Unit:        "m2",
			Quantity:    decimal.NewFromInt(60),
			UnitPrice:   decimal.NewFromInt(5000),
			LineTotal:   decimal.NewFromInt(300000),
		}},
		TotalDue:  decimal.NewFromInt(300000),
		TotalPaid: decimal.NewFromInt(100000),
		Debt:      decimal.NewFromInt(200000),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
