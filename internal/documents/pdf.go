package documents

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	ledger "transport-ledger/internal/ledger/domain"
	logistics "transport-ledger/internal/logistics/domain"
)

const (
	pageMargin = 10.0
	rowHeight  = 6.0
	footerRoom = 12.0
)

type column struct {
	title string
	width float64
	align string
}

var ledgerColumns = []column{
	{"Date", 24, "C"},
	{"Reference", 32, "L"},
	{"Description", 85, "L"},
	{"Credit", 34, "R"},
	{"Debit (Payment)", 34, "R"},
	{"Debit (Advance)", 34, "R"},
	{"Balance", 34, "R"},
}

// table writes rows with manual pagination: a new page starts whenever the
// next row would cross the page-height budget, and the header repeats.
type table struct {
	pdf     *gofpdf.Fpdf
	columns []column
	onPage  func()
}

func newDocument(orientation string, header Header, title string) *gofpdf.Fpdf {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		_, h := pdf.GetPageSize()
		pdf.SetY(h - pageMargin - 4)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 4, fmt.Sprintf("%s - %s - page %d/{nb}", header.company(), title, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return pdf
}

func (t *table) budget() float64 {
	_, h := t.pdf.GetPageSize()
	return h - pageMargin - footerRoom
}

func (t *table) header() {
	t.pdf.SetFont("Arial", "B", 9)
	t.pdf.SetFillColor(230, 230, 230)
	for _, c := range t.columns {
		t.pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	t.pdf.Ln(-1)
	t.pdf.SetFont("Arial", "", 9)
}

func (t *table) newPage() {
	t.pdf.AddPage()
	if t.onPage != nil {
		t.onPage()
	}
	t.header()
}

func (t *table) row(values []string, bold bool) {
	if t.pdf.GetY()+rowHeight > t.budget() {
		t.newPage()
	}
	if bold {
		t.pdf.SetFont("Arial", "B", 9)
	}
	for i, c := range t.columns {
		t.pdf.CellFormat(c.width, rowHeight, fit(t.pdf, values[i], c.width-2), "1", 0, c.align, false, 0, "")
	}
	t.pdf.Ln(-1)
	if bold {
		t.pdf.SetFont("Arial", "", 9)
	}
}

// fit truncates text to the given width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func letterhead(pdf *gofpdf.Fpdf, header Header, title string, lines ...string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, header.company(), "", 1, "C", false, 0, "")
	if header.Address != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, header.Address, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 7, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range lines {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderLedgerPDF(s *ledger.Snapshot, header Header) (*gofpdf.Fpdf, error) {
	if s == nil {
		return nil, errors.New("documents: nil snapshot")
	}
	title := snapshotTitle(s)
	pdf := newDocument("L", header, title)
	t := &table{pdf: pdf, columns: ledgerColumns}
	pdf.AddPage()
	currency := header.Currency
	if currency == "" {
		currency = "INR"
	}
	letterhead(pdf, header, title,
		"Period: "+periodLabel(s.Period),
		"Generated: "+s.GeneratedAt.Format("02-01-2006 15:04"),
		"Amounts in "+currency,
	)
	t.header()

	for _, row := range s.Rows {
		t.row([]string{
			formatDate(row.Date),
			row.Reference,
			row.Description,
			moneyOrBlank(row.Credit),
			moneyOrBlank(row.DebitPayment),
			moneyOrBlank(row.DebitAdvance),
			money(row.RunningBalance),
		}, row.SourceType == ledger.SourceOpening)
	}
	t.row([]string{
		"", "", "Total",
		money(s.Totals.Credit),
		money(s.Totals.DebitPayment),
		money(s.Totals.DebitAdvance),
		money(s.Totals.CurrentBalance),
	}, true)
	return pdf, nil
}

// LedgerPDF renders a ledger snapshot as a paginated landscape PDF.
func LedgerPDF(s *ledger.Snapshot, header Header) ([]byte, error) {
	pdf, err := renderLedgerPDF(s, header)
	if err != nil {
		return nil, err
	}
	return output(pdf)
}

type field struct {
	label string
	value string
}

func fieldBlock(pdf *gofpdf.Fpdf, fields []field) {
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 6, f.label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, f.value, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

var advanceColumns = []column{
	{"Date", 35, "C"},
	{"Mode", 45, "L"},
	{"Narration", 65, "L"},
	{"Amount", 45, "R"},
}

func advanceTable(pdf *gofpdf.Fpdf, advances []logistics.AdvancePayment) {
	if len(advances) == 0 {
		return
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Advances", "", 1, "L", false, 0, "")
	t := &table{pdf: pdf, columns: advanceColumns}
	t.header()
	for _, adv := range advances {
		t.row([]string{formatDate(adv.Date), adv.Mode, adv.Narration, money(adv.Amount)}, false)
	}
}

func renderBillPDF(b *logistics.Bill, header Header) (*gofpdf.Fpdf, error) {
	if b == nil {
		return nil, errors.New("documents: nil bill")
	}
	title := "Bill " + b.BillNumber
	pdf := newDocument("P", header, title)
	pdf.AddPage()
	letterhead(pdf, header, "FREIGHT BILL")
	fieldBlock(pdf, []field{
		{"Bill No.", b.BillNumber},
		{"Date", formatDate(b.Date)},
		{"Party", b.PartyID},
		{"Vehicle No.", b.VehicleNo},
		{"Loading Slip", b.LoadingSlipID},
	})
	fieldBlock(pdf, []field{
		{"Bill Amount", money(b.BillAmount)},
		{"Detention", money(b.Detention)},
		{"Extra", money(b.Extra)},
		{"RTO", money(b.RTO)},
		{"Total Freight", money(b.TotalFreight)},
		{"Mamool", money(b.Mamool)},
		{"Penalties", money(b.Penalties)},
		{"TDS", money(b.TDS)},
		{"Party Commission", money(b.PartyCommissionCut)},
		{"Net Amount", money(b.NetAmount)},
		{"Paid", money(b.PaidAmount)},
		{"Balance", money(b.Balance)},
		{"Status", b.Status},
	})
	advanceTable(pdf, b.Advances)
	return pdf, nil
}

// BillPDF renders a bill.
func BillPDF(b *logistics.Bill, header Header) ([]byte, error) {
	pdf, err := renderBillPDF(b, header)
	if err != nil {
		return nil, err
	}
	return output(pdf)
}

// MemoPDF renders a broker memo.
func MemoPDF(m *logistics.Memo, header Header) ([]byte, error) {
	if m == nil {
		return nil, errors.New("documents: nil memo")
	}
	title := "Memo " + m.MemoNumber
	pdf := newDocument("P", header, title)
	pdf.AddPage()
	letterhead(pdf, header, "BROKER MEMO")
	fieldBlock(pdf, []field{
		{"Memo No.", m.MemoNumber},
		{"Date", formatDate(m.Date)},
		{"Supplier", m.SupplierID},
		{"Vehicle No.", m.VehicleNo},
		{"Loading Slip", m.LoadingSlipID},
	})
	fieldBlock(pdf, []field{
		{"Freight", money(m.Freight)},
		{"Commission", money(m.Commission)},
		{"Mamool", money(m.Mamool)},
		{"Detention", money(m.Detention)},
		{"Extra", money(m.Extra)},
		{"RTO", money(m.RTO)},
		{"Net Amount", money(m.NetAmount)},
		{"Paid", money(m.PaidAmount)},
		{"Balance", money(m.Balance)},
		{"Status", m.Status},
	})
	advanceTable(pdf, m.Advances)
	return output(pdf)
}

// LoadingSlipPDF renders a loading slip.
func LoadingSlipPDF(s *logistics.LoadingSlip, header Header) ([]byte, error) {
	if s == nil {
		return nil, errors.New("documents: nil loading slip")
	}
	title := "Loading Slip " + s.SlipNumber
	pdf := newDocument("P", header, title)
	pdf.AddPage()
	letterhead(pdf, header, "LOADING SLIP")
	fieldBlock(pdf, []field{
		{"Slip No.", s.SlipNumber},
		{"Date", formatDate(s.Date)},
		{"Vehicle No.", s.VehicleNo},
		{"From", s.From},
		{"To", s.To},
		{"Material", s.Material},
		{"Weight", s.Weight.String()},
		{"Party", s.PartyID},
		{"Supplier", s.SupplierID},
	})
	fieldBlock(pdf, []field{
		{"Freight", money(s.Freight)},
		{"Advance", money(s.Advance)},
		{"Balance", money(s.Balance)},
	})
	return output(pdf)
}
