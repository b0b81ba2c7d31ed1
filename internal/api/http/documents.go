package apihttp

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"transport-ledger/internal/documents"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/observability/metrics"
)

// handleDocument serves GET /api/v1/documents/{bills|memos|loading_slips}/{id}.pdf.
func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, documentsPrefix), "/")
	if len(parts) != 2 || !strings.HasSuffix(parts[1], ".pdf") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	collection := parts[0]
	id := strings.TrimSuffix(parts[1], ".pdf")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	start := time.Now()
	var (
		data []byte
		name string
		err  error
	)
	ctx := r.Context()
	switch collection {
	case logistics.CollectionBills:
		var bill *logistics.Bill
		if bill, err = h.logistics.Bills.Get(ctx, id); err == nil {
			name = "bill-" + bill.BillNumber
			data, err = documents.BillPDF(bill, h.header)
		}
	case logistics.CollectionMemos:
		var memo *logistics.Memo
		if memo, err = h.logistics.Memos.Get(ctx, id); err == nil {
			name = "memo-" + memo.MemoNumber
			data, err = documents.MemoPDF(memo, h.header)
		}
	case logistics.CollectionLoadingSlips:
		var slip *logistics.LoadingSlip
		if slip, err = h.logistics.LoadingSlips.Get(ctx, id); err == nil {
			name = "loading-slip-" + slip.SlipNumber
			data, err = documents.LoadingSlipPDF(slip, h.header)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(string(documents.FormatPDF), metrics.ResultError, time.Since(start))
		respondServiceError(w, err)
		return
	}
	metrics.ObserveExport(string(documents.FormatPDF), metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", documents.ContentTypePDF)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, collection+".print", collection, id, nil)
}
