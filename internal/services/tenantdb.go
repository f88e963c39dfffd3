package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
)

// TenantDBProvisioner materializes the per-tenant SQLite database pair
// (write/read) in the bucket when a contract is first saved. Knowledge-side
// tooling opens these files directly.
type TenantDBProvisioner interface {
	EnsureTenantDBs(ctx context.Context, accountID, tenantID string) error
}

type tenantDBProvisioner struct {
	log    *logger.Logger
	bucket gcp.BucketService
	now    func() time.Time
}

func NewTenantDBProvisioner(log *logger.Logger, bucket gcp.BucketService) (TenantDBProvisioner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	return &tenantDBProvisioner{
		log:    log.With("service", "TenantDBProvisioner"),
		bucket: bucket,
		now:    time.Now,
	}, nil
}

type tenantDBMeta struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"not null;column:value"`
}

func (tenantDBMeta) TableName() string { return "meta" }

type tenantDBQA struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Question  string `gorm:"not null;column:question"`
	Answer    string `gorm:"not null;column:answer"`
	SourceKey string `gorm:"column:source_key"`
	CreatedAt string `gorm:"not null;column:created_at"`
}

func (tenantDBQA) TableName() string { return "qa" }

// EnsureTenantDBs creates write.db and read.db under the tenant's db/
// prefix. A database that already exists with a non-zero size is never
// overwritten.
func (p *tenantDBProvisioner) EnsureTenantDBs(ctx context.Context, accountID, tenantID string) error {
	base := fmt.Sprintf("accounts/%s/tenants/%s/db/", accountID, tenantID)
	targets := []struct {
		filename string
		role     string
	}{
		{"write.db", "write"},
		{"read.db", "read"},
	}

	for _, t := range targets {
		key := base + t.filename
		size, exists, err := p.bucket.ObjectSize(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to probe tenant db %q: %w", key, err)
		}
		if exists && size > 0 {
			continue
		}

		data, err := p.buildSQLiteFile(accountID, tenantID, t.role)
		if err != nil {
			return fmt.Errorf("failed to build tenant db %q: %w", key, err)
		}
		if err := p.bucket.Write(ctx, key, data, "application/octet-stream"); err != nil {
			return fmt.Errorf("failed to upload tenant db %q: %w", key, err)
		}
		p.log.Info("Tenant db provisioned", "key", key, "role", t.role)
	}
	return nil
}

func (p *tenantDBProvisioner) buildSQLiteFile(accountID, tenantID, role string) ([]byte, error) {
	local := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%s_%s.db", accountID, tenantID, role))
	defer os.Remove(local)

	db, err := gorm.Open(sqlite.Open(local), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite file: %w", err)
	}

	if err := db.AutoMigrate(&tenantDBMeta{}, &tenantDBQA{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	meta := []tenantDBMeta{
		{Key: "schema_version", Value: "1"},
		{Key: "tenant_id", Value: tenantID},
		{Key: "account_id", Value: accountID},
		{Key: "db_role", Value: role},
		{Key: "created_at", Value: p.now().UTC().Format(time.RFC3339)},
	}
	if err := db.Save(&meta).Error; err != nil {
		return nil, fmt.Errorf("failed to seed sqlite meta: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Close(); err != nil {
		return nil, fmt.Errorf("failed to close sqlite file: %w", err)
	}

	return os.ReadFile(local)
}
