package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ankinstructor/ank-admin-api/internal/handlers"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/middleware"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type RouterConfig struct {
	Log         *logger.Logger
	AuthService services.AuthService
	CORSOrigins []string

	UploadHandler   *handlers.UploadHandler
	JudgeHandler    *handlers.JudgeHandler
	AccountHandler  *handlers.AccountHandler
	TenantHandler   *handlers.TenantHandler
	ContractHandler *handlers.ContractHandler
	InviteHandler   *handlers.InviteHandler
	QAHandler       *handlers.QAHandler
	SessionHandler  *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("ank-admin-api"))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsCfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}
	if len(origins) == 1 && origins[0] == "*" {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowCredentials = false
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowOrigins = nil
	}
	router.Use(cors.New(corsCfg))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/v1/system", cfg.TenantHandler.System)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(middleware.RequireAuth(cfg.Log, cfg.AuthService))

	// Session / entry
	protected.GET("/v1/session", cfg.SessionHandler.Get)

	// Accounts
	protected.GET("/v1/account", cfg.AccountHandler.Get)
	protected.POST("/v1/account", cfg.AccountHandler.Create)

	// Tenants
	protected.GET("/v1/tenants", cfg.TenantHandler.List)
	protected.POST("/v1/tenant", cfg.TenantHandler.Create)
	protected.GET("/v1/tenant", cfg.TenantHandler.Get)
	protected.POST("/v1/tenant/contract", cfg.TenantHandler.UpsertContract)
	protected.POST("/v1/tenant/mark-paid", cfg.TenantHandler.MarkPaid)
	protected.GET("/v1/pricing", cfg.TenantHandler.Pricing)

	// Contracts (relational create + legacy document layout)
	protected.POST("/v1/contract", cfg.ContractHandler.Create)
	protected.POST("/v1/contracts/update", cfg.ContractHandler.UpdateDoc)
	protected.POST("/v1/contracts/mark-paid", cfg.ContractHandler.MarkPaidDoc)

	// Invites
	protected.POST("/v1/invites", cfg.InviteHandler.Create)
	protected.POST("/v1/invites/consume", cfg.InviteHandler.Consume)

	// Upload intake
	protected.POST("/v1/admin/upload-url", cfg.UploadHandler.CreateUploadURL)
	protected.POST("/v1/admin/upload-finalize", cfg.UploadHandler.FinalizeUpload)
	protected.POST("/v1/admin/dialogues/judge-method", cfg.JudgeHandler.JudgeMethod)

	// QA relay
	protected.POST("/v1/qa/build", cfg.QAHandler.Build)
	protected.POST("/v1/qa/generate-file", cfg.QAHandler.GenerateFile)

	return router
}
