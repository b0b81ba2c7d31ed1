package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"transport-ledger/internal/audit"
	"transport-ledger/internal/documents"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
	"transport-ledger/internal/observability/metrics"
	"transport-ledger/internal/records"
)

const (
	routePrefix = "/api/v1/ledgers/"
	dateLayout  = "2006-01-02"
)

// Handler serves ledger snapshots and their exports.
type Handler struct {
	snapshots   *ledgerapp.SnapshotService
	auditLogger audit.Logger
	header      documents.Header
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(snapshots *ledgerapp.SnapshotService, auditLogger audit.Logger, header documents.Header, logger *log.Logger) (*Handler, error) {
	if snapshots == nil {
		return nil, errors.New("ledger handler: nil snapshot service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{snapshots: snapshots, auditLogger: auditLogger, header: header, logger: logger}, nil
}

// ServeHTTP routes /api/v1/ledgers/{kind}[/{key}][/export.{pdf|xlsx}].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, routePrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, routePrefix), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var format documents.Format
	if last := parts[len(parts)-1]; strings.HasPrefix(last, "export.") {
		parsed, err := documents.ParseFormat(strings.TrimPrefix(last, "export."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		format = parsed
		parts = parts[:len(parts)-1]
	}
	if len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	scope, err := ledger.ParseScope(parts[0], key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, err := h.snapshots.Build(r.Context(), scope, period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if format == "" {
		h.handleSnapshot(w, r, snapshot)
		return
	}
	h.handleExport(w, r, snapshot, format)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request, snapshot *ledger.Snapshot) {
	order := r.URL.Query().Get("order")
	switch order {
	case "", "asc":
	case "desc":
		// Descending is a view of the same rows; balances stay chronological.
		view := *snapshot
		view.Rows = ledger.Descending(snapshot.Rows)
		snapshot = &view
	default:
		http.Error(w, "order must be asc or desc", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, snapshot *ledger.Snapshot, format documents.Format) {
	start := time.Now()
	data, contentType, err := documents.RenderLedger(format, snapshot, h.header)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(start))
		h.logger.Printf("ledger export error: scope=%s format=%s err=%v", snapshot.Scope, format, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(string(format), metrics.ResultSuccess, time.Since(start))

	filename := exportFilename(snapshot.Scope, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, snapshot.Scope, format, len(snapshot.Rows))
}

func (h *Handler) logAudit(r *http.Request, scope ledger.Scope, format documents.Format, rows int) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.FromRequest(r, "ledger.export", "ledger", scope.String(), map[string]any{
		"format": string(format),
		"rows":   rows,
		"from":   r.URL.Query().Get("from"),
		"to":     r.URL.Query().Get("to"),
	})
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("ledger audit error: scope=%s err=%v", scope, err)
	}
}

func exportFilename(scope ledger.Scope, format documents.Format) string {
	name := string(scope.Kind)
	if scope.Key != "" {
		name += "-" + scope.Key
	}
	return "ledger-" + name + "." + string(format)
}

func parsePeriod(r *http.Request) (ledger.Period, error) {
	from, err := parseDateQuery(r, "from")
	if err != nil {
		return ledger.Period{}, err
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		return ledger.Period{}, err
	}
	return ledger.Period{From: from, To: to}, nil
}

func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339", key)
	}
	return parsed.UTC(), nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidScope), errors.Is(err, ledgerapp.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
