package http

import (
	"github.com/EternisAI/silo-enroll/internal/api/http/handler"
	"github.com/EternisAI/silo-enroll/internal/api/http/middleware"
	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/gin-gonic/gin"
)

type Config struct {
	Port   uint `mapstructure:"port"`
	QRSize int  `mapstructure:"qr_size"`
}

type Services struct {
	Registry *enrollment.Registry
	Journal  journal.Store
	Renderer *delivery.Renderer
	Auth     auth.Config
	QRSize   int
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	enrollHandler := handler.NewEnrollmentHandler(srvs.Registry, srvs.Renderer, srvs.QRSize)
	historyHandler := handler.NewHistoryHandler(srvs.Journal)

	api := engine.Group("/api/v1/enrollment")
	api.Use(middleware.JWTAuth(srvs.Auth.JWTSecret), middleware.RequireRole(auth.RoleAdmin))
	{
		api.POST("/session", enrollHandler.OpenSession)
		api.GET("/session", enrollHandler.GetSession)
		api.DELETE("/session", enrollHandler.CloseSession)
		api.POST("/session/reset", enrollHandler.ResetSession)
		api.POST("/session/client", enrollHandler.StartClient)
		api.POST("/session/manual", enrollHandler.StartManual)
		api.POST("/session/back", enrollHandler.Back)
		api.PUT("/session/location", enrollHandler.SelectLocation)
		api.POST("/session/device", enrollHandler.SubmitDevice)
		api.GET("/session/delivery", enrollHandler.Delivery)
		api.GET("/session/delivery/qr.png", enrollHandler.DeliveryQR)
		api.GET("/session/configs/:network_id", enrollHandler.Config)
		api.GET("/history", historyHandler.List)
	}

	// Machine access to the journal for audit exports.
	audit := engine.Group("/api/v1/audit")
	audit.Use(middleware.APIKeyAuth(srvs.Auth.AdminAPIKey))
	{
		audit.GET("/enrollments", historyHandler.List)
	}
}
