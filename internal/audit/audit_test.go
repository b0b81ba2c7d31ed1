package audit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"transport-ledger/internal/auth"
)

func TestFromRequestCarriesIdentity(t *testing.T) {
	req := httptest.NewRequest("DELETE", "/api/v1/bills/b-1", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	req.Header.Set("User-Agent", "ledger-test")
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Subject: "clerk", Role: auth.RoleAdmin}))

	entry := FromRequest(req, "bills.delete", "bills", "b-1", map[string]any{"reason": "duplicate"})
	require.Equal(t, "clerk", entry.Actor)
	require.Equal(t, "admin", entry.Role)
	require.Equal(t, "10.0.0.7", entry.IP)
	require.Equal(t, "ledger-test", entry.UserAgent)
	require.JSONEq(t, `{"reason":"duplicate"}`, string(entry.Metadata))
}

func TestMemoryLogStampsEntries(t *testing.T) {
	log := NewMemoryLog()
	require.NoError(t, log.Log(context.Background(), Entry{Action: "ledgers.export", Metadata: []byte(`{"format":"pdf"}`)}))
	require.NoError(t, log.Log(context.Background(), Entry{Action: "bills.create"}))

	entries := log.Entries()
	require.Len(t, entries, 2)
	require.NotEmpty(t, entries[0].ID)
	require.False(t, entries[0].CreatedAt.IsZero())
	require.Equal(t, DigestJSON([]byte(`{"format":"pdf"}`)), entries[0].PayloadDigest)
	require.Empty(t, entries[1].PayloadDigest)
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.4:5555"
	require.Equal(t, "192.168.1.4", clientIP(req))
	req.Header.Set("X-Real-IP", " 172.16.0.2 ")
	require.Equal(t, "172.16.0.2", clientIP(req))
}
