package apihttp

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"transport-ledger/internal/audit"
	cashbookapp "transport-ledger/internal/cashbook/application"
	cashbookmemory "transport-ledger/internal/cashbook/infrastructure/memory"
	"transport-ledger/internal/documents"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledgermemory "transport-ledger/internal/ledger/infrastructure/memory"
	logisticsapp "transport-ledger/internal/logistics/application"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/logistics/infrastructure/filestore"
	"transport-ledger/internal/records"
	"transport-ledger/internal/records/memory"
)

type testServer struct {
	handler http.Handler
	audit   *audit.MemoryLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	locks := records.NewScopeLocks()
	content, err := filestore.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	logisticsService, err := logisticsapp.NewService(logisticsapp.Stores{
		LoadingSlips:     memory.NewStore[*logistics.LoadingSlip](),
		Memos:            memory.NewStore[*logistics.Memo](),
		Bills:            memory.NewStore[*logistics.Bill](),
		Banking:          memory.NewStore[*logistics.BankingEntry](),
		FuelWallets:      memory.NewStore[*logistics.FuelWallet](),
		FuelTransactions: memory.NewStore[*logistics.FuelTransaction](),
		Parties:          memory.NewStore[*logistics.Party](),
		Suppliers:        memory.NewStore[*logistics.Supplier](),
		Vehicles:         memory.NewStore[*logistics.Vehicle](),
		Commissions:      memory.NewStore[*logistics.PartyCommission](),
		PODFiles:         memory.NewStore[*logistics.PODFile](),
	}, logisticsapp.WithLocks(locks), logisticsapp.WithLogger(logger), logisticsapp.WithContentStore(content))
	require.NoError(t, err)
	cashbookService, err := cashbookapp.NewService(cashbookmemory.NewRepository(), cashbookapp.WithLocks(locks), cashbookapp.WithLogger(logger))
	require.NoError(t, err)
	entryService, err := ledgerapp.NewEntryService(ledgermemory.NewRepository(), locks, nil, logger)
	require.NoError(t, err)

	auditLog := audit.NewMemoryLog()
	handler, err := NewHandler(logisticsService, cashbookService, entryService, auditLog, documents.Header{Company: "Acme Roadways"}, logger)
	require.NoError(t, err)
	return &testServer{handler: handler, audit: auditLog}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func (s *testServer) create(t *testing.T, collection, body string) map[string]any {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/"+collection, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func amount(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	switch x := v.(type) {
	case string:
		return decimal.RequireFromString(x)
	case float64:
		return decimal.NewFromFloat(x)
	}
	t.Fatalf("unexpected amount %T", v)
	return decimal.Zero
}

func seed(t *testing.T, s *testServer) (partyID, slipID string) {
	party := s.create(t, "parties", `{"name":"Acme Traders"}`)
	slip := s.create(t, "loading_slips", `{"slip_number":"LS-1","date":"2025-04-01T00:00:00Z","vehicle_no":"mh 12 ab 1234","party_id":"`+party["id"].(string)+`","from":"Pune","to":"Nagpur","freight":"15000","advance":"4000"}`)
	return party["id"].(string), slip["id"].(string)
}

func TestCreateBillComputesDerivedFields(t *testing.T) {
	s := newTestServer(t)
	partyID, slipID := seed(t, s)

	bill := s.create(t, "bills", `{"bill_number":"B-1","loading_slip_id":"`+slipID+`","party_id":"`+partyID+`","date":"2025-04-02T00:00:00Z",
		"bill_amount":"10000","detention":"500","rto":"200","mamool":"100","tds":"50","net_amount":"1","total_freight":"1"}`)
	require.True(t, amount(t, bill["total_freight"]).Equal(decimal.NewFromInt(10700)))
	require.True(t, amount(t, bill["net_amount"]).Equal(decimal.NewFromInt(10550)))
	require.Equal(t, "MH12AB1234", bill["vehicle_no"])

	resp := s.do(t, http.MethodGet, "/api/v1/bills?party_id="+partyID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var bills []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &bills))
	require.Len(t, bills, 1)

	resp = s.do(t, http.MethodGet, "/api/v1/loading_slips?vehicle_no=MH-12-AB-1234", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var slips []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &slips))
	require.Len(t, slips, 1)
}

func TestErrorStatusCodes(t *testing.T) {
	s := newTestServer(t)
	partyID, slipID := seed(t, s)
	s.create(t, "bills", `{"bill_number":"B-1","loading_slip_id":"`+slipID+`","party_id":"`+partyID+`","date":"2025-04-02T00:00:00Z","bill_amount":"100"}`)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown collection", http.MethodGet, "/api/v1/trucks", "", http.StatusNotFound},
		{"missing record", http.MethodGet, "/api/v1/bills/nope", "", http.StatusNotFound},
		{"legacy field name", http.MethodPost, "/api/v1/parties", `{"name":"X","openingBalance":"5"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/parties", `{`, http.StatusBadRequest},
		{"validation", http.MethodPost, "/api/v1/bills", `{"bill_number":"B-2"}`, http.StatusBadRequest},
		{"unknown reference", http.MethodPost, "/api/v1/bills", `{"bill_number":"B-2","loading_slip_id":"ghost","party_id":"` + partyID + `","date":"2025-04-02T00:00:00Z"}`, http.StatusBadRequest},
		{"referenced slip delete", http.MethodDelete, "/api/v1/loading_slips/" + slipID, "", http.StatusConflict},
		{"referenced party delete", http.MethodDelete, "/api/v1/parties/" + partyID, "", http.StatusConflict},
		{"id mismatch", http.MethodPut, "/api/v1/parties/" + partyID, `{"id":"other","name":"X"}`, http.StatusBadRequest},
		{"method not allowed", http.MethodPatch, "/api/v1/parties", "", http.StatusMethodNotAllowed},
		{"too deep", http.MethodGet, "/api/v1/parties/a/b/c", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(t, tc.method, tc.target, tc.body)
			require.Equal(t, tc.want, resp.Code, resp.Body.String())
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	vehicle := s.create(t, "vehicles", `{"vehicle_no":"ka01 ab 1","ownership":"own"}`)
	id := vehicle["id"].(string)

	resp := s.do(t, http.MethodPut, "/api/v1/vehicles/"+id, `{"vehicle_no":"KA01AB1","owner_name":"Ravi","ownership":"own"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var updated map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	require.Equal(t, "Ravi", updated["owner_name"])

	resp = s.do(t, http.MethodPost, "/api/v1/vehicles", `{"vehicle_no":"KA-01-AB-1"}`)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = s.do(t, http.MethodDelete, "/api/v1/vehicles/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.Code)
	resp = s.do(t, http.MethodGet, "/api/v1/vehicles/"+id, "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	actions := make([]string, 0)
	for _, e := range s.audit.Entries() {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []string{"vehicles.create", "vehicles.update", "vehicles.delete"}, actions)
}

func TestCashbookRunningBalanceAndMaintenance(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "cashbook_entries", `{"type":"credit","category":"opening","amount":"1000","date":"2025-04-01T00:00:00Z","running_balance":"99999"}`)
	second := s.create(t, "cashbook_entries", `{"type":"debit","category":"diesel","amount":"300","date":"2025-04-05T00:00:00Z"}`)
	require.True(t, amount(t, second["running_balance"]).Equal(decimal.NewFromInt(700)))

	s.create(t, "cashbook_entries", `{"type":"debit","category":"toll","amount":"100","date":"2025-04-03T00:00:00Z"}`)

	resp := s.do(t, http.MethodGet, "/api/v1/cashbook_entries/verify", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var verify struct {
		Consistent bool             `json:"consistent"`
		Breaks     []map[string]any `json:"breaks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &verify))
	require.False(t, verify.Consistent)

	resp = s.do(t, http.MethodPost, "/api/v1/cashbook_entries/recompute", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var recompute struct {
		Changed int `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &recompute))
	require.Equal(t, 2, recompute.Changed)

	resp = s.do(t, http.MethodGet, "/api/v1/cashbook_entries/verify", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &verify))
	require.True(t, verify.Consistent)
	require.Empty(t, verify.Breaks)

	require.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodGet, "/api/v1/cashbook_entries/recompute", "").Code)
}

func TestCreateOverridesClientMetadata(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "cashbook_entries", `{"type":"credit","category":"opening","amount":"1000","date":"2025-04-01T00:00:00Z"}`)
	early := s.create(t, "cashbook_entries", `{"type":"debit","category":"diesel","amount":"300","date":"2025-04-01T00:00:00Z","created_at":"2000-01-01T00:00:00Z","seq":-5}`)
	require.NotEqual(t, "2000-01-01T00:00:00Z", early["created_at"])
	require.Greater(t, early["seq"].(float64), float64(0))
	last := s.create(t, "cashbook_entries", `{"type":"credit","category":"freight","amount":"100","date":"2025-04-02T00:00:00Z"}`)
	require.True(t, amount(t, last["running_balance"]).Equal(decimal.NewFromInt(800)))

	resp := s.do(t, http.MethodGet, "/api/v1/cashbook_entries/verify", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var verify struct {
		Consistent bool             `json:"consistent"`
		Breaks     []map[string]any `json:"breaks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &verify))
	require.True(t, verify.Consistent)
	require.Empty(t, verify.Breaks)

	s.create(t, "ledger_entries", `{"ledger_type":"general","credit":"500","date":"2025-04-01T00:00:00Z"}`)
	s.create(t, "ledger_entries", `{"ledger_type":"general","debit":"200","date":"2025-04-01T00:00:00Z","created_at":"2000-01-01T00:00:00Z"}`)
	third := s.create(t, "ledger_entries", `{"ledger_type":"general","credit":"50","date":"2025-04-01T00:00:00Z"}`)
	require.True(t, amount(t, third["balance"]).Equal(decimal.NewFromInt(350)))
}

func TestLedgerEntriesAreAppendOnly(t *testing.T) {
	s := newTestServer(t)
	first := s.create(t, "ledger_entries", `{"ledger_type":"general","credit":"500","date":"2025-04-01T00:00:00Z"}`)
	second := s.create(t, "ledger_entries", `{"ledger_type":"general","debit":"200","date":"2025-04-02T00:00:00Z"}`)
	require.True(t, amount(t, first["balance"]).Equal(decimal.NewFromInt(500)))
	require.True(t, amount(t, second["balance"]).Equal(decimal.NewFromInt(300)))

	id := first["id"].(string)
	require.Equal(t, http.StatusConflict, s.do(t, http.MethodPut, "/api/v1/ledger_entries/"+id, `{"ledger_type":"general","credit":"1","date":"2025-04-01T00:00:00Z"}`).Code)
	require.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, "/api/v1/ledger_entries/"+id, "").Code)
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/ledger_entries", `{"ledger_type":"general","credit":"1","debit":"1","date":"2025-04-01T00:00:00Z"}`).Code)
}

func TestPODUploadAndDownload(t *testing.T) {
	s := newTestServer(t)
	partyID, slipID := seed(t, s)
	bill := s.create(t, "bills", `{"bill_number":"B-1","loading_slip_id":"`+slipID+`","party_id":"`+partyID+`","date":"2025-04-02T00:00:00Z","bill_amount":"100"}`)
	billID := bill["id"].(string)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "pod.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 signed delivery"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills/"+billID+"/pod", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var pod map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &pod))

	resp = s.do(t, http.MethodGet, "/api/v1/pod_files/"+pod["id"].(string)+"/content", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "%PDF-1.4 signed delivery", resp.Body.String())

	resp = s.do(t, http.MethodGet, "/api/v1/bills/"+billID, "")
	var stored map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stored))
	require.Equal(t, pod["id"], stored["pod_file_id"])

	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/bills/"+billID+"/pod", "").Code)
}

func TestDocumentPDFs(t *testing.T) {
	s := newTestServer(t)
	partyID, slipID := seed(t, s)
	bill := s.create(t, "bills", `{"bill_number":"B-7","loading_slip_id":"`+slipID+`","party_id":"`+partyID+`","date":"2025-04-02T00:00:00Z","bill_amount":"100"}`)

	resp := s.do(t, http.MethodGet, "/api/v1/documents/bills/"+bill["id"].(string)+".pdf", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, documents.ContentTypePDF, resp.Header().Get("Content-Type"))
	require.Contains(t, resp.Header().Get("Content-Disposition"), "bill-B-7.pdf")
	require.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	resp = s.do(t, http.MethodGet, "/api/v1/documents/loading_slips/"+slipID+".pdf", "")
	require.Equal(t, http.StatusOK, resp.Code)

	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/documents/memos/ghost.pdf", "").Code)
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/documents/parties/"+partyID+".pdf", "").Code)
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/bills", nil))
	require.Contains(t, buf.String(), "http GET /api/v1/bills 418")
}
