package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHistory expects the client and manual enrollment tests to have run.
func TestHistory(t *testing.T, env *Env) {
	token := env.Token(t, "operator-history", auth.RoleAdmin)

	rr := doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/history?username=alice", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[dto.HistoryResponse](t, rr)

	kinds := map[string]int{}
	for _, e := range resp.Entries {
		assert.Equal(t, "alice", e.Username)
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[string(journal.KindEnrollmentIssued)])
	assert.Equal(t, 1, kinds[string(journal.KindDeviceRegistered)])

	// newest first
	require.GreaterOrEqual(t, len(resp.Entries), 2)
	assert.Equal(t, string(journal.KindDeviceRegistered), resp.Entries[0].Kind)

	rr = doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/history?username=mallory", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[dto.HistoryResponse](t, rr).Count)

	t.Run("audit export", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodGet, "/api/v1/audit/enrollments", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/enrollments?limit=10", nil)
		req.Header.Set("X-API-Key", env.AuditAPIKey)
		rr = httptest.NewRecorder()
		env.Router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.GreaterOrEqual(t, decode[dto.HistoryResponse](t, rr).Count, 2)
	})
}
