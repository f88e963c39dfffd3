package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ankinstructor/ank-admin-api/internal/classify"
	"github.com/ankinstructor/ank-admin-api/internal/clients/knowledge"
	"github.com/ankinstructor/ank-admin-api/internal/clients/redis"
	"github.com/ankinstructor/ank-admin-api/internal/config"
	"github.com/ankinstructor/ank-admin-api/internal/db"
	"github.com/ankinstructor/ank-admin-api/internal/handlers"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/observability"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
	"github.com/ankinstructor/ank-admin-api/internal/platform/sendgrid"
	"github.com/ankinstructor/ank-admin-api/internal/repos"
	"github.com/ankinstructor/ank-admin-api/internal/server"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	cfg := config.Load(log)

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "ank-admin-api",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Warn("OTel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	contractRepo := repos.NewContractRepo(thePG, log)
	userContractRepo := repos.NewUserContractRepo(thePG, log)
	inviteRepo := repos.NewInviteRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	bucketService, err := gcp.NewBucketService(log, cfg.BucketName, cfg.SignerKeyFile)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	mailer, err := sendgrid.New(log, sendgrid.ConfigFromEnv(log))
	if err != nil {
		log.Error("Could not init sendgrid client", "error", err)
		os.Exit(1)
	}
	knowledgeClient, err := knowledge.New(log, cfg.KnowledgeBaseURL)
	if err != nil {
		log.Error("Could not init knowledge client", "error", err)
		os.Exit(1)
	}

	var finalizeGuard redis.FinalizeGuard
	if cfg.RedisAddr != "" {
		finalizeGuard, err = redis.NewFinalizeGuard(log, cfg.RedisAddr)
		if err != nil {
			log.Warn("Could not init finalize guard, duplicate finalize protection disabled", "error", err)
			finalizeGuard = nil
		}
	}

	// Classifier
	classifyCfg, err := classify.LoadConfig(cfg.ClassifyConfig, log)
	if err != nil {
		log.Error("Could not load classifier config", "error", err)
		os.Exit(1)
	}
	sampler, err := classify.NewSampler(bucketService, classifyCfg, log)
	if err != nil {
		log.Error("Could not init sampler", "error", err)
		os.Exit(1)
	}
	arbiter := classify.NewArbiter(classifyCfg, log)

	// Services
	log.Info("Setting up Services from main...")
	authService, err := services.NewAuthService(log, cfg.JWTSecretKey)
	if err != nil {
		log.Error("Could not init AuthService", "error", err)
		os.Exit(1)
	}
	aclService, err := services.NewACLService(log, userContractRepo)
	if err != nil {
		log.Error("Could not init ACLService", "error", err)
		os.Exit(1)
	}
	accountService, err := services.NewAccountService(log, bucketService)
	if err != nil {
		log.Error("Could not init AccountService", "error", err)
		os.Exit(1)
	}
	provisioner, err := services.NewTenantDBProvisioner(log, bucketService)
	if err != nil {
		log.Error("Could not init TenantDBProvisioner", "error", err)
		os.Exit(1)
	}
	tenantService, err := services.NewTenantService(log, bucketService, provisioner)
	if err != nil {
		log.Error("Could not init TenantService", "error", err)
		os.Exit(1)
	}
	contractDocService, err := services.NewContractDocService(log, bucketService)
	if err != nil {
		log.Error("Could not init ContractDocService", "error", err)
		os.Exit(1)
	}
	contractService, err := services.NewContractService(log, thePG, userRepo, contractRepo, userContractRepo)
	if err != nil {
		log.Error("Could not init ContractService", "error", err)
		os.Exit(1)
	}
	inviteService, err := services.NewInviteService(log, thePG, userRepo, userContractRepo, inviteRepo, mailer, cfg.AppBaseURL, cfg.InviteFromEmail)
	if err != nil {
		log.Error("Could not init InviteService", "error", err)
		os.Exit(1)
	}
	sessionService, err := services.NewSessionService(log, bucketService)
	if err != nil {
		log.Error("Could not init SessionService", "error", err)
		os.Exit(1)
	}
	uploadService, err := services.NewUploadService(log, bucketService, sampler, arbiter, finalizeGuard, contractRepo, cfg.SignedURLExpiry)
	if err != nil {
		log.Error("Could not init UploadService", "error", err)
		os.Exit(1)
	}
	qaService, err := services.NewQAService(log, knowledgeClient, aclService)
	if err != nil {
		log.Error("Could not init QAService", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	uploadHandler := handlers.NewUploadHandler(log, uploadService)
	judgeHandler := handlers.NewJudgeHandler(log, uploadService, aclService)
	accountHandler := handlers.NewAccountHandler(log, accountService)
	tenantHandler := handlers.NewTenantHandler(log, tenantService)
	contractHandler := handlers.NewContractHandler(log, contractService, contractDocService)
	inviteHandler := handlers.NewInviteHandler(log, inviteService, aclService)
	qaHandler := handlers.NewQAHandler(log, qaService)
	sessionHandler := handlers.NewSessionHandler(log, sessionService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		AuthService:     authService,
		CORSOrigins:     cfg.CORSOrigins,
		UploadHandler:   uploadHandler,
		JudgeHandler:    judgeHandler,
		AccountHandler:  accountHandler,
		TenantHandler:   tenantHandler,
		ContractHandler: contractHandler,
		InviteHandler:   inviteHandler,
		QAHandler:       qaHandler,
		SessionHandler:  sessionHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Warn("Server failed: %v", err)
	}
}
