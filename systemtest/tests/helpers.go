package tests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/coreapi/coreapitest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const apiPrefix = "/api/v1/enrollment"

type Env struct {
	Router      *gin.Engine
	Core        *coreapitest.Server
	JWTSecret   string
	AuditAPIKey string
}

func (e *Env) Token(t *testing.T, operatorID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.Config{JWTSecret: e.JWTSecret}, operatorID, operatorID, role)
	require.NoError(t, err)
	return token
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithAuth(router, method, path, body, "")
}

func doJSONWithAuth(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
