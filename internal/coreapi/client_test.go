package coreapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", APIToken: "secret"})
}

func TestStartEnrollment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/user/alice/start_enrollment", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["send_enrollment_notification"])

		_ = json.NewEncoder(w).Encode(StartEnrollmentResponse{
			EnrollmentToken: "tok",
			EnrollmentURL:   "https://enroll.example.com",
		})
	})

	resp, err := c.StartEnrollment(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.EnrollmentToken)
	assert.Equal(t, "https://enroll.example.com", resp.EnrollmentURL)
}

func TestStartEnrollmentDisabledAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"msg":"user is disabled"}`))
	})

	_, err := c.StartEnrollment(context.Background(), "bob", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountDisabled)
	assert.Contains(t, err.Error(), "user is disabled")
}

func TestStartEnrollmentEmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"enrollment_token":"","enrollment_url":"https://x"}`))
	})

	_, err := c.StartEnrollment(context.Background(), "alice", false)
	assert.Error(t, err)
}

func TestRecommendAndValidateIPs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/device/network/ip/7", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"network_part":"10.0.0.","network_prefix":24,"modifiable_part":"5"}]`))
		case http.MethodPost:
			var req ValidateIPsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, req.IPs)
			_, _ = w.Write([]byte(`[{"available":true,"valid":true},{"available":false,"valid":true}]`))
		}
	})

	recs, err := c.RecommendIPs(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "10.0.0.5", recs[0].Address())
	assert.Equal(t, 24, recs[0].NetworkPrefix)

	res, err := c.ValidateIPs(context.Background(), 7, []string{"10.0.0.5", "10.0.0.6"})
	require.NoError(t, err)
	assert.Equal(t, []IPValidation{{Available: true, Valid: true}, {Available: false, Valid: true}}, res)
}

func TestValidateIPsMisalignedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"available":true,"valid":true}]`))
	})

	_, err := c.ValidateIPs(context.Background(), 1, []string{"a", "b"})
	assert.Error(t, err)
}

func TestAddDevice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/device/alice", r.URL.Path)
		var req AddDeviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "laptop", req.Name)
		assert.Equal(t, []string{"10.0.0.5"}, req.AssignedIPs)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(AddDeviceResponse{
			Device:  Device{ID: 3, Name: req.Name, WireguardPubkey: req.WireguardPubkey},
			Configs: []DeviceConfig{{NetworkID: 1, NetworkName: "office", Config: "[Interface]"}},
		})
	})

	resp, err := c.AddDevice(context.Background(), "alice", AddDeviceRequest{
		Name:            "laptop",
		WireguardPubkey: "pub",
		LocationID:      1,
		AssignedIPs:     []string{"10.0.0.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Device.ID)
	require.Len(t, resp.Configs, 1)
	assert.Equal(t, "office", resp.Configs[0].NetworkName)
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := c.ListUserDevices(context.Background(), "alice")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Message)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.RecommendIPs(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
