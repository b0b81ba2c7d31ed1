package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "transport-ledger/internal/ledger/domain"
)

// Format selects the output of a ledger export.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Content types of rendered documents.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrUnknownFormat is returned for formats other than pdf and xlsx.
var ErrUnknownFormat = errors.New("documents: unknown format")

// Header is the letterhead printed on every document.
type Header struct {
	Company  string
	Address  string
	Currency string
}

func (h Header) company() string {
	if strings.TrimSpace(h.Company) == "" {
		return "Transport Ledger"
	}
	return h.Company
}

// ParseFormat validates an export format.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
}

// RenderLedger renders a snapshot in the requested format and returns the
// payload with its content type.
func RenderLedger(format Format, snapshot *ledger.Snapshot, header Header) ([]byte, string, error) {
	switch format {
	case FormatPDF:
		data, err := LedgerPDF(snapshot, header)
		return data, ContentTypePDF, err
	case FormatXLSX:
		data, err := LedgerXLSX(snapshot, header)
		return data, ContentTypeXLSX, err
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// moneyOrBlank leaves zero cells empty so the debit and credit columns read cleanly.
func moneyOrBlank(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02-01-2006")
}

func periodLabel(p ledger.Period) string {
	switch {
	case p.From.IsZero() && p.To.IsZero():
		return "All dates"
	case p.From.IsZero():
		return "Up to " + formatDate(p.To)
	case p.To.IsZero():
		return "From " + formatDate(p.From)
	}
	return formatDate(p.From) + " to " + formatDate(p.To)
}

func snapshotTitle(s *ledger.Snapshot) string {
	if s.Title != "" {
		return s.Title
	}
	return "Ledger - " + s.Scope.String()
}
