package tests

import (
	"net/http"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T, env *Env) {
	rr := doJSON(env.Router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[dto.HealthResponse](t, rr).Status)
}

func TestAuth(t *testing.T, env *Env) {
	t.Run("missing token", func(t *testing.T) {
		rr := doJSON(env.Router, http.MethodGet, apiPrefix+"/session", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session", nil, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non admin role", func(t *testing.T) {
		token := env.Token(t, "viewer", "user")
		rr := doJSONWithAuth(env.Router, http.MethodGet, apiPrefix+"/session", nil, token)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
