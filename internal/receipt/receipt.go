// Package receipt projects a backend-confirmed transaction into printable
// documents for 80mm thermal rolls: an HTML page for browser/bridge printing
// and raw ESC/POS bytes for direct hardware printing. It also owns the print
// surface lifecycle.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
)

// ErrUnconfirmed rejects rendering of anything that has not been through the
// backend: a receipt without a server-assigned transaction id is worthless
// at the counter.
var ErrUnconfirmed = errors.New("transaction is not backend-confirmed")

// Document is a self-contained, finalized receipt ready for a print surface.
type Document struct {
	TransactionID string
	HTML          string
	Text          string
	Escpos        []byte
}

// Renderer formats confirmed transactions. Zero value is not usable; use
// NewRenderer.
type Renderer struct {
	currency string
}

// NewRenderer builds a renderer with the given currency glyph (falls back to
// the taka sign, the platform's default market).
func NewRenderer(currency string) *Renderer {
	if strings.TrimSpace(currency) == "" {
		currency = "৳"
	}
	return &Renderer{currency: currency}
}

// StatusOf derives the payment status label from due vs grand total. Pure
// function; a transaction whose amounts did not survive the upstream decode
// is Unknown, never guessed.
func StatusOf(due, grandTotal decimal.NullDecimal) domain.PaymentStatus {
	if !due.Valid || !grandTotal.Valid {
		return domain.PaymentStatusUnknown
	}
	switch {
	case due.Decimal.LessThanOrEqual(decimal.Zero):
		return domain.PaymentStatusPaid
	case due.Decimal.LessThan(grandTotal.Decimal):
		return domain.PaymentStatusPartial
	default:
		return domain.PaymentStatusUnpaid
	}
}

// Render produces the printable documents for a confirmed transaction.
func (r *Renderer) Render(tx domain.ConfirmedTransaction, shopName string) (Document, error) {
	if strings.TrimSpace(tx.TransactionID) == "" {
		return Document{}, ErrUnconfirmed
	}

	view := r.buildView(tx, shopName)

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, view); err != nil {
		return Document{}, fmt.Errorf("render receipt %s: %w", tx.TransactionID, err)
	}

	text := r.renderText(view)

	return Document{
		TransactionID: tx.TransactionID,
		HTML:          buf.String(),
		Text:          text,
		Escpos:        escposBytes(text),
	}, nil
}

type itemView struct {
	Name      string
	Qty       int
	UnitPrice string
	Total     string
}

type receiptView struct {
	ShopName      string
	TransactionID string
	Date          string
	PaymentMethod string
	Status        domain.PaymentStatus
	CustomerName  string
	CustomerPhone string
	BankingPhone  string
	Note          string
	HasBanking    bool
	HasNote       bool
	Items         []itemView
	Subtotal      string
	Discount      string
	GrandTotal    string
	Paid          string
	Change        string
	Due           string
}

func (r *Renderer) buildView(tx domain.ConfirmedTransaction, shopName string) receiptView {
	items := make([]itemView, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, itemView{
			Name:      orNA(item.Name),
			Qty:       item.Quantity,
			UnitPrice: r.money(item.UnitPrice),
			Total:     r.money(item.Total),
		})
	}

	return receiptView{
		ShopName:      orNA(shopName),
		TransactionID: tx.TransactionID,
		Date:          tx.CreatedAt.Format("02 Jan 2006 15:04"),
		PaymentMethod: orNA(tx.PaymentMethod),
		Status:        StatusOf(tx.Due, tx.GrandTotal),
		CustomerName:  orNA(tx.CustomerName),
		CustomerPhone: orNA(tx.CustomerPhone),
		BankingPhone:  tx.MobileBankingPhone,
		Note:          tx.Note,
		HasBanking:    strings.TrimSpace(tx.MobileBankingPhone) != "",
		HasNote:       strings.TrimSpace(tx.Note) != "",
		Items:         items,
		Subtotal:      r.money(tx.Subtotal),
		Discount:      r.money(tx.DiscountTotal),
		GrandTotal:    r.money(tx.GrandTotal),
		Paid:          r.money(tx.AmountPaid),
		Change:        r.money(tx.AmountChange),
		Due:           r.money(tx.Due),
	}
}

// money formats with the currency glyph and exactly two decimals; absent
// values render "N/A", never a fabricated zero.
func (r *Renderer) money(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return r.currency + d.Decimal.StringFixed(2)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// renderText lays the receipt out on a 32-column thermal grid.
func (r *Renderer) renderText(v receiptView) string {
	const width = 32
	divider := strings.Repeat("-", width)

	lines := []string{
		center("RECEIPT", width),
		center(v.ShopName, width),
		divider,
		"TX     : " + v.TransactionID,
		"Date   : " + v.Date,
		"Payment: " + v.PaymentMethod,
		"Status : " + string(v.Status),
		divider,
		"Customer: " + v.CustomerName,
		"Phone   : " + v.CustomerPhone,
	}
	if v.HasBanking {
		lines = append(lines, "Banking : "+v.BankingPhone)
	}
	if v.HasNote {
		lines = append(lines, "Note    : "+v.Note)
	}
	lines = append(lines, divider)
	for _, item := range v.Items {
		lines = append(lines, item.Name)
		lines = append(lines, fmt.Sprintf("  %d x %s = %s", item.Qty, item.UnitPrice, item.Total))
	}
	lines = append(lines,
		divider,
		pad("Subtotal", v.Subtotal, width),
		pad("Discount", v.Discount, width),
		pad("Grand Total", v.GrandTotal, width),
		pad("Paid", v.Paid, width),
		pad("Change", v.Change, width),
		pad("Due", v.Due, width),
		divider,
		center("Thank you, come again!", width),
		"",
	)
	return strings.Join(lines, "\n")
}

// Column math counts runes, not bytes; the currency glyph and Bengali names
// are multi-byte.
func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s
}

func pad(label string, value string, width int) string {
	gap := width - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

// escposBytes wraps the text layout in printer init and partial-cut
// commands.
func escposBytes(text string) []byte {
	out := []byte{0x1b, 0x40}
	out = append(out, []byte(text)...)
	out = append(out, '\n')
	out = append(out, 0x1d, 0x56, 0x41, 0x10)
	return out
}

// receiptTmpl is the html/template for the browser-printable receipt. All
// user-controlled fields are auto-escaped. The 80mm width and monospace
// 10px scale match common thermal roll drivers.
var receiptTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Receipt {{.TransactionID}}</title>
  <style>
    body { width: 80mm; margin: 0; padding: 4px; font-family: monospace; font-size: 10px; }
    .center { text-align: center; }
    .divider { border-top: 1px dashed #000; margin: 4px 0; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 1px 0; font-size: 10px; }
    td.num { text-align: right; white-space: nowrap; }
    .totals td:first-child { text-align: left; }
  </style>
</head>
<body>
  <div class="center"><strong>RECEIPT</strong></div>
  <div class="center">{{.ShopName}}</div>
  <div class="divider"></div>
  <div>TX: {{.TransactionID}}</div>
  <div>Date: {{.Date}}</div>
  <div>Payment: {{.PaymentMethod}}</div>
  <div>Status: {{.Status}}</div>
  <div class="divider"></div>
  <div>Customer: {{.CustomerName}}</div>
  <div>Phone: {{.CustomerPhone}}</div>
  {{if .HasBanking}}<div>Banking: {{.BankingPhone}}</div>{{end}}
  {{if .HasNote}}<div>Note: {{.Note}}</div>{{end}}
  <div class="divider"></div>
  <table>
    <thead><tr><td>Item</td><td class="num">Qty</td><td class="num">Price</td><td class="num">Total</td></tr></thead>
    <tbody>
    {{range .Items}}<tr><td>{{.Name}}</td><td class="num">{{.Qty}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Total}}</td></tr>
    {{end}}</tbody>
  </table>
  <div class="divider"></div>
  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
    <tr><td>Discount</td><td class="num">{{.Discount}}</td></tr>
    <tr><td>Grand Total</td><td class="num">{{.GrandTotal}}</td></tr>
    <tr><td>Paid</td><td class="num">{{.Paid}}</td></tr>
    <tr><td>Change</td><td class="num">{{.Change}}</td></tr>
    <tr><td>Due</td><td class="num">{{.Due}}</td></tr>
  </table>
  <div class="divider"></div>
  <div class="center">Thank you, come again!</div>
</body>
</html>
`))
