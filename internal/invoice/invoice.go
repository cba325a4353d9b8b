package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/smartdepot/storefront/internal/domain"
)

// Customer is who the invoice is issued to.
type Customer struct {
	Name  string
	Email string
}

const (
	seller        = "SmartDepot SRL"
	sellerContact = "contact@smartdepot.ro"
	currency      = "Lei"
)

// Generate renders the invoice for order as an in-memory PDF.
func Generate(order *domain.Order, customer Customer) ([]byte, error) {
	if order == nil {
		return nil, errors.New("nil order")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Invoice %d", order.ID), true)
	pdf.SetAuthor(seller, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(seller+" - "+sellerContact), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	issued := order.CreatedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Order number: %d", order.ID))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date: "+issued.Format("02.01.2006"))
	pdf.Ln(7)
	pdf.Cell(0, 7, tr("Customer: "+orDash(customer.Name)))
	pdf.Ln(7)
	if customer.Email != "" {
		pdf.Cell(0, 7, tr("Email: "+customer.Email))
		pdf.Ln(7)
	}
	address := order.Address
	if address == "" {
		address = "store pickup"
	}
	pdf.MultiCell(0, 7, tr("Shipping address: "+address), "", "L", false)
	pdf.Ln(5)

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range []string{"Product", "Qty", "Unit price", "Subtotal"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		pdf.CellFormat(widths[0], 7, tr(truncate(item.Title, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, domain.FormatCents(item.PriceCents), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, domain.FormatCents(item.SubtotalCents()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("TOTAL: %s %s", domain.FormatCents(order.TotalCents), currency), "", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Thank you for shopping with us!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %d: %w", order.ID, err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
