package systemtest

import (
	"context"
	"testing"

	internalhttp "github.com/EternisAI/silo-enroll/internal/api/http"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/coreapi/coreapitest"
	"github.com/EternisAI/silo-enroll/internal/db"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/EternisAI/silo-enroll/systemtest/postgres"
	"github.com/EternisAI/silo-enroll/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const (
	jwtSecret   = "systemtest-secret"
	auditAPIKey = "systemtest-audit-key"
)

func TestSystemIntegration(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := postgres.StartPostgres(ctx, "silo", "silo", "silo_enroll")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := postgres.TerminatePostgres(ctx, container); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.Open(ctx, db.Config{Url: dbURL, Schema: "silo_enroll"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	core := coreapitest.NewServer()
	t.Cleanup(core.Close)
	core.AddDevice("alice", "phone")
	core.Disable("mallory")

	store := journal.NewPostgresStore(pool)
	client := coreapi.NewClient(core.ClientConfig())
	registry := enrollment.NewRegistry(func() *enrollment.Controller {
		return enrollment.NewCoreController(client, store, enrollment.Options{})
	})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, &internalhttp.Services{
		Registry: registry,
		Journal:  store,
		Renderer: delivery.NewRenderer(""),
		Auth:     auth.Config{JWTSecret: jwtSecret, AdminAPIKey: auditAPIKey},
	})

	env := &tests.Env{
		Router:      engine,
		Core:        core,
		JWTSecret:   jwtSecret,
		AuditAPIKey: auditAPIKey,
	}

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, env) })
	t.Run("Auth", func(t *testing.T) { tests.TestAuth(t, env) })
	t.Run("ClientEnrollment", func(t *testing.T) { tests.TestClientEnrollment(t, env) })
	t.Run("ManualEnrollment", func(t *testing.T) { tests.TestManualEnrollment(t, env) })
	t.Run("History", func(t *testing.T) { tests.TestHistory(t, env) })
}
