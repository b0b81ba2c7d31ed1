package documents

import (
	"bytes"
	"errors"

	"github.com/xuri/excelize/v2"

	ledger "transport-ledger/internal/ledger/domain"
)

const (
	ledgerSheet  = "Ledger"
	summarySheet = "Summary"
)

var ledgerHeaders = []string{"Date", "Reference", "Description", "Source", "Credit", "Debit (Payment)", "Debit (Advance)", "Balance"}

// LedgerXLSX renders a ledger snapshot as a workbook with a row sheet and a
// summary sheet. Amounts are written as numbers with two decimals.
func LedgerXLSX(s *ledger.Snapshot, header Header) ([]byte, error) {
	if s == nil {
		return nil, errors.New("documents: nil snapshot")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	set := func(sheet string, col, row int, value any) {
		if err != nil {
			return
		}
		var cell string
		cell, err = excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return
		}
		err = f.SetCellValue(sheet, cell, value)
	}

	for i, h := range ledgerHeaders {
		set(ledgerSheet, i+1, 1, h)
	}
	for i, row := range s.Rows {
		r := i + 2
		set(ledgerSheet, 1, r, formatDate(row.Date))
		set(ledgerSheet, 2, r, row.Reference)
		set(ledgerSheet, 3, r, row.Description)
		set(ledgerSheet, 4, r, string(row.SourceType))
		set(ledgerSheet, 5, r, row.Credit.InexactFloat64())
		set(ledgerSheet, 6, r, row.DebitPayment.InexactFloat64())
		set(ledgerSheet, 7, r, row.DebitAdvance.InexactFloat64())
		set(ledgerSheet, 8, r, row.RunningBalance.InexactFloat64())
	}
	totalRow := len(s.Rows) + 2
	set(ledgerSheet, 3, totalRow, "Total")
	set(ledgerSheet, 5, totalRow, s.Totals.Credit.InexactFloat64())
	set(ledgerSheet, 6, totalRow, s.Totals.DebitPayment.InexactFloat64())
	set(ledgerSheet, 7, totalRow, s.Totals.DebitAdvance.InexactFloat64())
	set(ledgerSheet, 8, totalRow, s.Totals.CurrentBalance.InexactFloat64())

	summary := [][2]any{
		{"Company", header.company()},
		{"Ledger", snapshotTitle(s)},
		{"Scope", s.Scope.String()},
		{"Period", periodLabel(s.Period)},
		{"Generated", s.GeneratedAt.Format("02-01-2006 15:04")},
		{"Total Credit", s.Totals.Credit.InexactFloat64()},
		{"Total Debit (Payment)", s.Totals.DebitPayment.InexactFloat64()},
		{"Total Debit (Advance)", s.Totals.DebitAdvance.InexactFloat64()},
		{"Current Balance", s.Totals.CurrentBalance.InexactFloat64()},
	}
	for i, kv := range summary {
		set(summarySheet, 1, i+1, kv[0])
		set(summarySheet, 2, i+1, kv[1])
	}
	if err != nil {
		return nil, err
	}

	lastMoney, err := excelize.CoordinatesToCellName(8, totalRow)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ledgerSheet, "E2", lastMoney, moneyStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "H1", boldStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "B6", "B9", moneyStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ledgerSheet, "C", "C", 40); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return nil, err
	}
	if err := f.SetPanes(ledgerSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
