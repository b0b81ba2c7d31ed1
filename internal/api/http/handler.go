package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"transport-ledger/internal/audit"
	cashbookapp "transport-ledger/internal/cashbook/application"
	cashbook "transport-ledger/internal/cashbook/domain"
	"transport-ledger/internal/documents"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
	logisticsapp "transport-ledger/internal/logistics/application"
	logistics "transport-ledger/internal/logistics/domain"
)

const (
	apiPrefix       = "/api/v1/"
	documentsPrefix = "/api/v1/documents/"
	maxUploadBytes  = 32 << 20
)

// Handler serves the collection REST API, cashbook maintenance, POD files and
// printable documents.
type Handler struct {
	resources   map[string]Resource
	logistics   *logisticsapp.Service
	cashbook    *cashbookapp.Service
	auditLogger audit.Logger
	header      documents.Header
	logger      *log.Logger
}

// NewHandler wires a resource per collection.
func NewHandler(
	logisticsService *logisticsapp.Service,
	cashbookService *cashbookapp.Service,
	entryService *ledgerapp.EntryService,
	auditLogger audit.Logger,
	header documents.Header,
	logger *log.Logger,
) (*Handler, error) {
	switch {
	case logisticsService == nil:
		return nil, errors.New("api handler: nil logistics service")
	case cashbookService == nil:
		return nil, errors.New("api handler: nil cashbook service")
	case entryService == nil:
		return nil, errors.New("api handler: nil ledger entry service")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := logisticsService
	list := []Resource{
		NewResource[*logistics.LoadingSlip](logistics.CollectionLoadingSlips, s.LoadingSlips, func() *logistics.LoadingSlip { return &logistics.LoadingSlip{} }, "vehicle_no", "party_id", "supplier_id", "slip_number"),
		NewResource[*logistics.Memo](logistics.CollectionMemos, s.Memos, func() *logistics.Memo { return &logistics.Memo{} }, "supplier_id", "vehicle_no", "loading_slip_id", "memo_number"),
		NewResource[*logistics.Bill](logistics.CollectionBills, s.Bills, func() *logistics.Bill { return &logistics.Bill{} }, "party_id", "vehicle_no", "loading_slip_id", "bill_number"),
		NewResource[*logistics.BankingEntry](logistics.CollectionBankingEntries, s.Banking, func() *logistics.BankingEntry { return &logistics.BankingEntry{} }, "party_id", "supplier_id", "vehicle_no", "bill_id", "memo_id", "category", "type"),
		NewResource[*logistics.FuelWallet](logistics.CollectionFuelWallets, s.FuelWallets, func() *logistics.FuelWallet { return &logistics.FuelWallet{} }, "vehicle_no", "provider"),
		NewResource[*logistics.FuelTransaction](logistics.CollectionFuelTransactions, s.FuelTransactions, func() *logistics.FuelTransaction { return &logistics.FuelTransaction{} }, "wallet_id", "vehicle_no", "type"),
		NewResource[*logistics.Party](logistics.CollectionParties, s.Parties, func() *logistics.Party { return &logistics.Party{} }, "name", "gstin"),
		NewResource[*logistics.Supplier](logistics.CollectionSuppliers, s.Suppliers, func() *logistics.Supplier { return &logistics.Supplier{} }, "name", "gstin"),
		NewResource[*logistics.Vehicle](logistics.CollectionVehicles, s.Vehicles, func() *logistics.Vehicle { return &logistics.Vehicle{} }, "vehicle_no", "ownership"),
		NewResource[*logistics.PartyCommission](logistics.CollectionPartyCommissions, s.Commissions, func() *logistics.PartyCommission { return &logistics.PartyCommission{} }, "party_id", "bill_id"),
		NewResource[*logistics.PODFile](logistics.CollectionPODFiles, s.PODFiles, func() *logistics.PODFile { return &logistics.PODFile{} }, "bill_id"),
		NewResource[*cashbook.Entry](logistics.CollectionCashbookEntries, cashbookService, func() *cashbook.Entry { return &cashbook.Entry{} }, "type", "category", "party_id", "supplier_id", "vehicle_no", "bill_id", "memo_id", "loading_slip_id"),
		NewResource[*ledger.Entry](logistics.CollectionLedgerEntries, ledgerEntries{service: entryService}, func() *ledger.Entry { return &ledger.Entry{} }, "ledger_type", "party_id", "supplier_id", "vehicle_no", "reference_id", "source_type"),
	}
	resources := make(map[string]Resource, len(list))
	for _, r := range list {
		resources[r.Name()] = r
	}
	return &Handler{
		resources:   resources,
		logistics:   logisticsService,
		cashbook:    cashbookService,
		auditLogger: auditLogger,
		header:      header,
		logger:      logger,
	}, nil
}

// Collections lists the served collection names.
func (h *Handler) Collections() []string {
	names := make([]string, 0, len(h.resources))
	for _, name := range logistics.Collections {
		if _, ok := h.resources[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// ServeHTTP routes /api/v1/{collection}[/{id}[/{action}]] and /api/v1/documents/.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, documentsPrefix) {
		h.handleDocument(w, r)
		return
	}
	if !strings.HasPrefix(r.URL.Path, apiPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix), "/"), "/")
	res, ok := h.resources[parts[0]]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch len(parts) {
	case 1:
		h.handleCollection(w, r, res)
	case 2:
		if res.Name() == logistics.CollectionCashbookEntries && h.handleCashbookAction(w, r, parts[1]) {
			return
		}
		h.handleItem(w, r, res, parts[1])
	case 3:
		switch {
		case res.Name() == logistics.CollectionBills && parts[2] == "pod":
			h.handlePODUpload(w, r, parts[1])
		case res.Name() == logistics.CollectionPODFiles && parts[2] == "content":
			h.handlePODDownload(w, r, parts[1])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, res Resource) {
	switch r.Method {
	case http.MethodGet:
		items, err := res.list(r.Context(), r.URL.Query())
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		created, id, err := res.create(r.Context(), r.Body)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		w.Header().Set("Location", apiPrefix+res.Name()+"/"+id)
		writeJSON(w, http.StatusCreated, created)
		h.logAudit(r, res.Name()+".create", res.Name(), id, nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, res Resource, id string) {
	switch r.Method {
	case http.MethodGet:
		item, err := res.get(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		updated, err := res.update(r.Context(), id, r.Body)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		h.logAudit(r, res.Name()+".update", res.Name(), id, nil)
	case http.MethodDelete:
		if err := res.delete(r.Context(), id); err != nil {
			respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		h.logAudit(r, res.Name()+".delete", res.Name(), id, nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleCashbookAction serves recompute and verify; false means action is an entry id.
func (h *Handler) handleCashbookAction(w http.ResponseWriter, r *http.Request, action string) bool {
	switch action {
	case "recompute":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return true
		}
		changed, err := h.cashbook.Recompute(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
		h.logAudit(r, "cashbook.recompute", logistics.CollectionCashbookEntries, "", map[string]any{"changed": changed})
		return true
	case "verify":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return true
		}
		breaks, err := h.cashbook.Verify(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return true
		}
		if breaks == nil {
			breaks = []cashbook.BalanceBreak{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"consistent": len(breaks) == 0, "breaks": breaks})
		return true
	}
	return false
}

func (h *Handler) handlePODUpload(w http.ResponseWriter, r *http.Request, billID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "multipart field \"file\" is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	pod, err := h.logistics.UploadPOD(r.Context(), billID, header.Filename, contentType, file)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Location", apiPrefix+logistics.CollectionPODFiles+"/"+pod.ID)
	writeJSON(w, http.StatusCreated, pod)
	h.logAudit(r, "bills.pod.upload", logistics.CollectionBills, billID, map[string]any{"pod_file_id": pod.ID, "size": pod.Size})
}

func (h *Handler) handlePODDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pod, content, err := h.logistics.OpenPOD(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	defer content.Close()

	contentType := pod.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pod.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Printf("pod download error: id=%s err=%v", id, err)
	}
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	if err := h.auditLogger.Log(r.Context(), audit.FromRequest(r, action, resourceType, resourceID, meta)); err != nil {
		h.logger.Printf("api audit error: action=%s id=%s err=%v", action, resourceID, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
