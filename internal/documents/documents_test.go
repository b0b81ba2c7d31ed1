package documents

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	ledger "transport-ledger/internal/ledger/domain"
	logistics "transport-ledger/internal/logistics/domain"
)

func day(n int) time.Time { return time.Date(2025, 4, n, 0, 0, 0, 0, time.UTC) }

func snapshotWith(rows int) *ledger.Snapshot {
	var movements []ledger.Movement
	for i := 0; i < rows; i++ {
		column := ledger.ColumnCredit
		if i%2 == 1 {
			column = ledger.ColumnDebitPayment
		}
		movements = append(movements, ledger.Movement{
			Date:        day(1 + i%28),
			Seq:         int64(i + 1),
			SourceType:  ledger.SourceBill,
			SourceID:    fmt.Sprintf("b-%d", i),
			Reference:   fmt.Sprintf("B-%03d", i),
			Description: "Freight bill for a long haul consignment with a description wide enough to be truncated",
			Column:      column,
			Amount:      decimal.NewFromInt(int64(100 + i)),
		})
	}
	scope := ledger.Scope{Kind: ledger.ScopeParty, Key: "p-1"}
	s := ledger.BuildSnapshot(scope, ledger.Period{}, movements, day(28))
	s.Title = "Party Ledger - Acme"
	return &s
}

func TestLedgerPDF_PaginatesLongSnapshots(t *testing.T) {
	short, err := renderLedgerPDF(snapshotWith(3), Header{Company: "Acme Roadways"})
	require.NoError(t, err)
	require.Equal(t, 1, short.PageCount())

	long, err := renderLedgerPDF(snapshotWith(120), Header{Company: "Acme Roadways"})
	require.NoError(t, err)
	require.Greater(t, long.PageCount(), 3)

	data, err := LedgerPDF(snapshotWith(120), Header{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestLedgerPDF_NilSnapshot(t *testing.T) {
	_, err := LedgerPDF(nil, Header{})
	require.Error(t, err)
}

func TestLedgerXLSX_WritesSnapshotValues(t *testing.T) {
	s := snapshotWith(5)
	before := *s
	data, err := LedgerXLSX(s, Header{Company: "Acme Roadways"})
	require.NoError(t, err)
	require.Equal(t, before.Totals, s.Totals)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(s.Rows)+2)
	require.Equal(t, ledgerHeaders, rows[0])

	for i, row := range s.Rows {
		cell, err := f.GetCellValue(ledgerSheet, fmt.Sprintf("H%d", i+2), excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		got, err := decimal.NewFromString(cell)
		require.NoError(t, err)
		require.True(t, got.Equal(row.RunningBalance), "row %d balance %s", i, cell)
		require.Equal(t, row.Reference, rows[i+1][1])
	}

	total, err := f.GetCellValue(ledgerSheet, fmt.Sprintf("H%d", len(s.Rows)+2), excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, s.Totals.CurrentBalance.String(), total)

	name, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	require.Equal(t, "Acme Roadways", name)
}

func TestRenderLedger_Formats(t *testing.T) {
	s := snapshotWith(2)
	_, ct, err := RenderLedger(FormatPDF, s, Header{})
	require.NoError(t, err)
	require.Equal(t, ContentTypePDF, ct)
	_, ct, err = RenderLedger(FormatXLSX, s, Header{})
	require.NoError(t, err)
	require.Equal(t, ContentTypeXLSX, ct)

	_, err = ParseFormat("csv")
	require.ErrorIs(t, err, ErrUnknownFormat)
	format, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	require.Equal(t, FormatPDF, format)
}

func TestBillPDF_WithManyAdvancesSpillsOver(t *testing.T) {
	bill := &logistics.Bill{BillNumber: "B-1", PartyID: "p-1", VehicleNo: "MH12AB1234", Date: day(1), BillAmount: decimal.NewFromInt(10000)}
	for i := 0; i < 60; i++ {
		bill.Advances = append(bill.Advances, logistics.AdvancePayment{Date: day(1 + i%28), Amount: decimal.NewFromInt(10), Mode: "cash"})
	}
	logistics.ComputeBill(bill)
	pdf, err := renderBillPDF(bill, Header{})
	require.NoError(t, err)
	require.Greater(t, pdf.PageCount(), 1)

	data, err := BillPDF(bill, Header{})
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestMemoAndSlipPDF(t *testing.T) {
	memo := &logistics.Memo{MemoNumber: "M-1", SupplierID: "s-1", Date: day(2), Freight: decimal.NewFromInt(5000)}
	logistics.ComputeMemo(memo)
	data, err := MemoPDF(memo, Header{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	slip := &logistics.LoadingSlip{SlipNumber: "LS-1", Date: day(2), From: "Pune", To: "Nagpur", Freight: decimal.NewFromInt(100)}
	logistics.ComputeLoadingSlip(slip)
	data, err = LoadingSlipPDF(slip, Header{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = MemoPDF(nil, Header{})
	require.Error(t, err)
}
