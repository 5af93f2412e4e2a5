package render

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

// Document is everything printed on a household invoice.
type Document struct {
	InvoiceID   string
	Status      string
	IssuedOn    string
	PeriodName  string
	PeriodRange string

	HouseholdCode string
	OwnerName     string
	ApartmentNo   string
	BuildingName  string

	Lines []Line

	TotalDue  decimal.Decimal
	TotalPaid decimal.Decimal
	Debt      decimal.Decimal
}

type Line struct {
	FeeTypeName string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

type Renderer interface {
	RenderPDF(doc Document) ([]byte, error)
}

type pdfRenderer struct{}

func NewRenderer() Renderer {
	return &pdfRenderer{}
}

func (r *pdfRenderer) RenderPDF(doc Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Apartment fee invoice", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, strings.ToUpper(strings.ReplaceAll(doc.Status, "_", " ")), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   3,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice: "+doc.InvoiceID, props.Text{Top: 0}),
			text.New("Issued: "+doc.IssuedOn, props.Text{Top: 5}),
			text.New("Period: "+doc.PeriodName, props.Text{Top: 10}),
			text.New(doc.PeriodRange, props.Text{Top: 15, Size: 9}),
		),
		col.New(6).Add(
			text.New("Household "+doc.HouseholdCode, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(doc.OwnerName, props.Text{Top: 5, Align: align.Right}),
			text.New("Apartment "+doc.ApartmentNo, props.Text{Top: 10, Align: align.Right}),
			text.New(doc.BuildingName, props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Fee", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Unit", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Quantity", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range doc.Lines {
		m.AddRow(8,
			text.NewCol(4, item.FeeTypeName, props.Text{Size: 9}),
			text.NewCol(2, item.Unit, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatVND(item.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatVND(item.LineTotal), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total due", props.Text{Size: 9}),
		text.NewCol(2, FormatVND(doc.TotalDue), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Paid", props.Text{Size: 9}),
		text.NewCol(2, FormatVND(doc.TotalPaid), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Outstanding", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, FormatVND(doc.Debt), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return out.GetBytes(), nil
}

// FormatVND prints a whole amount with dot thousand separators, e.g. 300.000 VND.
func FormatVND(amount decimal.Decimal) string {
	digits := amount.Round(0).Abs().StringFixed(0)
	var b strings.Builder
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	sign := ""
	if amount.Round(0).IsNegative() {
		sign = "-"
	}
	return sign + b.String() + " VND"
}
