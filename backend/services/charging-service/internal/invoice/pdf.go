package invoice

import (
	"bytes"
	"fmt"
	"io"
	"net/url"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"evcharge/backend/services/charging-service/internal/models"
)

// PaymentURI builds the UPI deep link encoded in the invoice QR code.
func PaymentURI(inv models.Invoice, company models.Company) string {
	v := url.Values{}
	v.Set("pa", company.UPIID)
	v.Set("pn", company.Name)
	v.Set("am", fmt.Sprintf("%.2f", inv.Total))
	v.Set("cu", "INR")
	v.Set("tn", inv.InvoiceNumber)
	return "upi://pay?" + v.Encode()
}

// RenderPDF writes the invoice as an A4 PDF. A payment QR code is embedded when the
// company has a UPI id.
func RenderPDF(w io.Writer, inv models.Invoice, company models.Company) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, false)
	pdf.SetCreator(company.Name, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(22, 163, 74)
	pdf.Cell(0, 10, company.Name)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 5, company.Address)
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("%s | %s | GST: %s", company.Phone, company.Email, company.GSTNumber))
	pdf.Ln(12)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(100, 7, "Invoice "+inv.InvoiceNumber)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, formatDate(inv.Date), "", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFillColor(212, 237, 218)
	pdf.SetTextColor(21, 87, 36)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(30, 6, inv.Status, "", 0, "C", true, 0, "")
	pdf.Ln(10)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		"Vehicle: " + inv.VehicleID,
		"Station: " + inv.StationName,
		"Location: " + inv.Location,
		"Duration: " + formatDuration(inv.DurationSec),
		"Session: " + inv.SessionID,
	} {
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}
	pdf.Ln(6)

	pdf.SetFillColor(249, 249, 249)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(90, 8, "Description", "B", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Units", "B", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Rate", "B", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Amount", "B", 0, "R", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	for _, item := range inv.Items {
		pdf.CellFormat(90, 7, item.Description, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, formatUnits(item.Units), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, formatMoney(item.Rate, company.Currency), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatMoney(item.Amount, company.Currency), "", 0, "R", false, 0, "")
		pdf.Ln(7)
	}
	pdf.Ln(3)

	totals := []struct {
		label  string
		amount float64
	}{
		{"Subtotal", inv.Subtotal},
		{"GST (" + formatPercent(inv.TaxRate) + ")", inv.Tax},
	}
	for _, t := range totals {
		pdf.CellFormat(150, 6, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatMoney(t.amount, company.Currency), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, "Total: "+formatMoney(inv.Total, company.Currency), "", 0, "R", true, 0, "")
	pdf.Ln(16)

	if company.UPIID != "" {
		png, err := qrcode.Encode(PaymentURI(inv, company), qrcode.Medium, 280)
		if err != nil {
			return fmt.Errorf("invoice: qr code: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("payment-qr", opts, bytes.NewReader(png))
		pdf.SetFont("Arial", "", 9)
		pdf.Cell(0, 5, "Scan to pay via UPI: "+company.UPIID)
		pdf.Ln(6)
		pdf.ImageOptions("payment-qr", pdf.GetX(), pdf.GetY(), 40, 40, false, opts, 0, "")
		pdf.Ln(44)
	}

	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 5, "Thank you for charging with "+company.Name+". "+company.Website)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("invoice: render pdf: %w", err)
	}
	return pdf.Output(w)
}
