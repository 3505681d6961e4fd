package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"evcharge/backend/services/charging-service/internal/models"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.InvoiceNumber}}</title>
  <style>
    body { margin: 0; padding: 32px; font-family: "Helvetica Neue", Arial, sans-serif; color: #111827; }
    .invoice { max-width: 820px; margin: 0 auto; }
    .header { display: flex; justify-content: space-between; border-bottom: 2px solid #16a34a; padding-bottom: 16px; margin-bottom: 24px; }
    .meta { text-align: right; font-size: 14px; }
    .label { color: #6b7280; text-transform: uppercase; letter-spacing: 0.04em; font-size: 11px; }
    .section { margin-bottom: 24px; }
    table { width: 100%; border-collapse: collapse; font-size: 14px; }
    th, td { padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; }
    td.num, th.num { text-align: right; }
    .totals td { border: none; }
    .grand td { font-size: 18px; font-weight: bold; }
    .footer { border-top: 1px solid #e5e7eb; padding-top: 16px; font-size: 12px; color: #6b7280; }
  </style>
</head>
<body>
  <div class="invoice">
    <div class="header">
      <div>
        <div><strong>{{.Company.Name}}</strong></div>
        <div>{{.Company.Address}}</div>
        <div>{{.Company.Phone}} | {{.Company.Email}}</div>
        <div>GST: {{.Company.GSTNumber}}</div>
      </div>
      <div class="meta">
        <div class="label">Invoice</div>
        <div><strong>{{.Invoice.InvoiceNumber}}</strong></div>
        <div>Date: {{formatDate .Invoice.Date}}</div>
        <div>Status: {{.Invoice.Status}}</div>
      </div>
    </div>

    <div class="section">
      <div class="label">Session</div>
      <div>Vehicle: {{.Invoice.VehicleID}}</div>
      <div>Station: {{.Invoice.StationName}}{{if .Invoice.Location}}, {{.Invoice.Location}}{{end}}</div>
      <div>Duration: {{formatDuration .Invoice.DurationSec}}</div>
      <div>Session ID: {{.Invoice.SessionID}}</div>
    </div>

    <div class="section">
      <table>
        <thead>
          <tr><th>Description</th><th class="num">Units</th><th class="num">Rate</th><th class="num">Amount</th></tr>
        </thead>
        <tbody>
          {{range .Invoice.Items}}
          <tr>
            <td>{{.Description}}</td>
            <td class="num">{{formatUnits .Units}}</td>
            <td class="num">{{formatMoney .Rate $.Company.Currency}}</td>
            <td class="num">{{formatMoney .Amount $.Company.Currency}}</td>
          </tr>
          {{end}}
        </tbody>
        <tbody class="totals">
          <tr><td colspan="3" class="num">Subtotal</td><td class="num">{{formatMoney .Invoice.Subtotal .Company.Currency}}</td></tr>
          <tr><td colspan="3" class="num">GST ({{formatPercent .Invoice.TaxRate}})</td><td class="num">{{formatMoney .Invoice.Tax .Company.Currency}}</td></tr>
          <tr class="grand"><td colspan="3" class="num">Total</td><td class="num">{{formatMoney .Invoice.Total .Company.Currency}}</td></tr>
        </tbody>
      </table>
    </div>

    <div class="section">
      <div>Paid via {{.Invoice.PaymentMethod}}{{if .Invoice.TransactionID}} (transaction {{.Invoice.TransactionID}}){{end}}</div>
    </div>

    <div class="footer">
      <div>Thank you for charging with {{.Company.Name}}.</div>
      {{if .Company.Website}}<div>{{.Company.Website}}</div>{{end}}
    </div>
  </div>
</body>
</html>
`

var htmlTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"formatMoney":    formatMoney,
	"formatDate":     formatDate,
	"formatUnits":    formatUnits,
	"formatPercent":  formatPercent,
	"formatDuration": formatDuration,
}).Parse(invoiceHTMLTemplate))

// RenderHTML renders the printable invoice page.
func RenderHTML(inv models.Invoice, company models.Company) (string, error) {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Invoice models.Invoice
		Company models.Company
	}{Invoice: inv, Company: company})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount float64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "INR"
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006 15:04")
}

func formatUnits(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
