package config

import (
	"time"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/utils"
)

type Config struct {
	Port             string
	JWTSecretKey     string
	BucketName       string
	SignerKeyFile    string
	SignedURLExpiry  time.Duration
	KnowledgeBaseURL string
	AppBaseURL       string
	InviteFromEmail  string
	RedisAddr        string
	ClassifyConfig   string
	CORSOrigins      []string
}

func Load(log *logger.Logger) Config {
	signedURLExpiryMin := utils.GetEnvAsInt("SIGNED_URL_EXPIRES_MIN", 15, log)
	return Config{
		Port:             utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:     utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		BucketName:       utils.GetEnv("UPLOAD_BUCKET", "ank-bucket", log),
		SignerKeyFile:    utils.GetEnv("GCS_SIGNER_KEY_FILE", "", log),
		SignedURLExpiry:  time.Duration(signedURLExpiryMin) * time.Minute,
		KnowledgeBaseURL: utils.GetEnv("KNOWLEDGE_API_BASE_URL", "", log),
		AppBaseURL:       utils.GetEnv("APP_BASE_URL", "https://ankinstructor2025-stack.github.io/ank-knowledge", log),
		InviteFromEmail:  utils.GetEnv("INVITE_FROM_EMAIL", "ank.instructor2025@gmail.com", log),
		RedisAddr:        utils.GetEnv("REDIS_ADDR", "", log),
		ClassifyConfig:   utils.GetEnv("CLASSIFY_CONFIG_PATH", "", log),
		CORSOrigins: []string{
			utils.GetEnv("CORS_ORIGIN", "*", log),
		},
	}
}
