package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEnrollment(t *testing.T, env *Env) {
	token := env.Token(t, "operator-client", auth.RoleAdmin)

	t.Run("disabled account stays at start", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, http.MethodPost, apiPrefix+"/session", dto.OpenSessionRequest{Username: "mallory"}, token)
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = doJSONWithAuth(env.Router, http.MethodPost, apiPrefix+"/session/client", nil, token)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		session := decode[dto.SessionResponse](t, doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session", nil, token))
		assert.Equal(t, string(enrollment.StepStartChoice), session.Step)
		assert.Nil(t, session.Enrollment)
	})

	t.Run("token issued and rendered", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, http.MethodPost, apiPrefix+"/session", dto.OpenSessionRequest{Username: "alice"}, token)
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, []string{"phone"}, decode[dto.SessionResponse](t, rr).Devices)

		rr = doJSONWithAuth(env.Router, http.MethodPost, apiPrefix+"/session/client", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session/delivery", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)
		d := decode[dto.DeliveryResponse](t, rr)

		e, err := delivery.DecodeQRPayload(d.QRPayload)
		require.NoError(t, err)
		assert.Equal(t, d.Token, e.Token)
		assert.Equal(t, d.URL, e.URL)
		assert.Contains(t, d.DeepLink, "defguard://addinstance?token=")

		rr = doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session/delivery/qr.png", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	})

	t.Run("close discards session", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, http.MethodDelete, apiPrefix+"/session", nil, token)
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session/delivery", nil, token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestManualEnrollment(t *testing.T, env *Env) {
	token := env.Token(t, "operator-manual", auth.RoleAdmin)
	do := func(method, path string, body any) *httptest.ResponseRecorder {
		return doJSONWithAuth(env.Router, method, apiPrefix+path, body, token)
	}

	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/session", dto.OpenSessionRequest{Username: "alice"}).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/session/manual", nil).Code)

	rr := do(http.MethodPut, "/session/location", dto.SelectLocationRequest{LocationID: 2})
	require.Equal(t, http.StatusOK, rr.Code)
	recs := decode[dto.RecommendationsResponse](t, rr)
	require.NotEmpty(t, recs.Recommendations)
	addr := recs.Recommendations[0].Address

	t.Run("duplicate name rejected", func(t *testing.T) {
		rr := do(http.MethodPost, "/session/device", dto.ManualDeviceRequest{Name: "phone", Addresses: []string{addr}})
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, enrollment.CodeDuplicate, decode[dto.ErrorResponse](t, rr).Fields["name"])
	})

	t.Run("device registered", func(t *testing.T) {
		before := len(env.Core.AddDeviceRequests())
		rr := do(http.MethodPost, "/session/device", dto.ManualDeviceRequest{Name: "workstation", Addresses: []string{addr}})
		require.Equal(t, http.StatusCreated, rr.Code)
		res := decode[dto.ManualDeviceResponse](t, rr)
		assert.True(t, res.KeysLocal)
		require.Len(t, res.Configs, 1)
		assert.Equal(t, "lab", res.Configs[0].NetworkName)

		calls := env.Core.AddDeviceRequests()
		require.Len(t, calls, before+1)
		assert.Equal(t, []string{addr}, calls[before].AssignedIPs)

		rr = do(http.MethodGet, "/session/configs/2", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "YOUR_PRIVATE_KEY")
	})

	t.Run("reserved address rejected on next session", func(t *testing.T) {
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/session", dto.OpenSessionRequest{Username: "alice"}).Code)
		require.Equal(t, http.StatusOK, do(http.MethodPost, "/session/manual", nil).Code)

		rr := do(http.MethodPost, "/session/device", dto.ManualDeviceRequest{Name: "second", LocationID: 2, Addresses: []string{addr}})
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "reservedIp", decode[dto.ErrorResponse](t, rr).Fields["addresses[0]"])
	})
}
