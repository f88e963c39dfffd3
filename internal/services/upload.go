package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ankinstructor/ank-admin-api/internal/classify"
	"github.com/ankinstructor/ank-admin-api/internal/clients/redis"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
	"github.com/ankinstructor/ank-admin-api/internal/repos"
)

const (
	maxUploadBytes = 100 * 1024 * 1024
	minUploadBytes = 1
)

var allowedUploadExts = map[string]bool{
	".txt":  true,
	".json": true,
	".csv":  true,
}

// UploadStore is the slice of the bucket the intake path touches.
type UploadStore interface {
	ReadHead(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	Delete(ctx context.Context, key string) error
	WriteJSON(ctx context.Context, key string, doc any) error
	SignedUploadURL(key, contentType string, expires time.Duration) (string, error)
}

type UploadURLRequest struct {
	TenantID    string `json:"tenant_id"`
	ContractID  string `json:"contract_id"` // accepted as a tenant_id alias
	Kind        string `json:"kind"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Note        string `json:"note"`
}

type UploadURLResult struct {
	UploadID  string `json:"upload_id"`
	ObjectKey string `json:"object_key"`
	UploadURL string `json:"upload_url"`
	MonthKey  string `json:"month_key"`
	TenantID  string `json:"tenant_id"`
	Kind      string `json:"kind"`
}

type FinalizeRequest struct {
	TenantID    string `json:"tenant_id"`
	ContractID  string `json:"contract_id"` // accepted as a tenant_id alias
	ObjectKey   string `json:"object_key"`
	UploadID    string `json:"upload_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Kind        string `json:"kind"`
	Note        string `json:"note"`
}

type FinalizeResult struct {
	OK           bool             `json:"ok"`
	Message      string           `json:"message,omitempty"`
	UploadID     string           `json:"upload_id,omitempty"`
	TenantID     string           `json:"tenant_id,omitempty"`
	ContractID   string           `json:"contract_id,omitempty"` // mirrors tenant_id for older UIs
	ObjectKey    string           `json:"object_key,omitempty"`
	QAMode       string           `json:"qa_mode,omitempty"`
	Confidence   float64          `json:"confidence"`
	Reasons      []string         `json:"reasons"`
	Stats        map[string]any   `json:"stats"`
	UploadLogKey string           `json:"upload_log_key,omitempty"`
}

// AcceptanceRecord is the durable per-upload log written next to the data.
type AcceptanceRecord struct {
	UploadID    string         `json:"upload_id"`
	TenantID    string         `json:"tenant_id"`
	Kind        string         `json:"kind"`
	ObjectKey   string         `json:"object_key"`
	MonthKey    string         `json:"month_key"`
	CreatedAt   string         `json:"created_at"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Judge       JudgeRecord    `json:"judge"`
	Note        string         `json:"note"`
}

type JudgeRecord struct {
	OK         bool           `json:"ok"`
	QAMode     string         `json:"qa_mode"`
	Confidence float64        `json:"confidence"`
	Reasons    []string       `json:"reasons"`
	Stats      map[string]any `json:"stats"`
}

type JudgeMethodRequest struct {
	ContractID  uuid.UUID
	ObjectKey   string
	SampleBytes int64
}

type JudgeMethodResult struct {
	CanExtractQA bool           `json:"can_extract_qa"`
	Method       string         `json:"method,omitempty"`
	Confidence   float64        `json:"confidence"`
	Reasons      []string       `json:"reasons"`
	Stats        map[string]any `json:"stats"`
}

type UploadService interface {
	CreateUploadURL(ctx context.Context, req UploadURLRequest) (*UploadURLResult, error)
	FinalizeUpload(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error)
	JudgeMethod(ctx context.Context, req JudgeMethodRequest) (*JudgeMethodResult, error)
}

type uploadService struct {
	log             *logger.Logger
	store           UploadStore
	sampler         *classify.Sampler
	arbiter         *classify.Arbiter
	guard           redis.FinalizeGuard // nil when redis is not configured
	contracts       repos.ContractRepo
	signedURLExpiry time.Duration
	now             func() time.Time
}

func NewUploadService(
	log *logger.Logger,
	store UploadStore,
	sampler *classify.Sampler,
	arbiter *classify.Arbiter,
	guard redis.FinalizeGuard,
	contracts repos.ContractRepo,
	signedURLExpiry time.Duration,
) (UploadService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil || sampler == nil || arbiter == nil {
		return nil, fmt.Errorf("store, sampler and arbiter required")
	}
	if signedURLExpiry <= 0 {
		signedURLExpiry = 15 * time.Minute
	}
	return &uploadService{
		log:             log.With("service", "UploadService"),
		store:           store,
		sampler:         sampler,
		arbiter:         arbiter,
		guard:           guard,
		contracts:       contracts,
		signedURLExpiry: signedURLExpiry,
		now:             time.Now,
	}, nil
}

func (s *uploadService) CreateUploadURL(ctx context.Context, req UploadURLRequest) (*UploadURLResult, error) {
	tenantID, err := resolveTenantID(req.TenantID, req.ContractID)
	if err != nil {
		return nil, err
	}
	if err := validateFileMeta(req.Filename, req.SizeBytes); err != nil {
		return nil, err
	}

	uploadID := uuid.NewString()
	monthKey := s.now().UTC().Format("2006-01")
	objectKey := uploadObjectKey(tenantID, monthKey, uploadID, safeName(req.Filename))

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := s.store.SignedUploadURL(objectKey, contentType, s.signedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed upload URL: %w", err)
	}

	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = "dialogue"
	}
	s.log.Info("Signed upload URL issued", "tenant_id", tenantID, "upload_id", uploadID)

	return &UploadURLResult{
		UploadID:  uploadID,
		ObjectKey: objectKey,
		UploadURL: url,
		MonthKey:  monthKey,
		TenantID:  tenantID,
		Kind:      kind,
	}, nil
}

// FinalizeUpload samples the uploaded object, classifies it, and applies the
// verdict: rejected objects are deleted, accepted ones get a durable log
// record. A redis SetNX guard keeps a double finalize from racing itself;
// the guard is advisory and the flow proceeds without redis.
func (s *uploadService) FinalizeUpload(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	tenantID, err := resolveTenantID(req.TenantID, req.ContractID)
	if err != nil {
		return nil, err
	}
	objectKey := strings.TrimSpace(req.ObjectKey)
	uploadID := strings.TrimSpace(req.UploadID)
	if objectKey == "" || uploadID == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "object_key and upload_id are required")
	}

	if s.guard != nil {
		first, gerr := s.guard.Acquire(ctx, uploadID)
		if gerr != nil {
			s.log.Warn("finalize guard unavailable, continuing", "upload_id", uploadID, "error", gerr)
		} else if !first {
			return nil, apierr.Newf(http.StatusConflict, "already_finalized", "upload %s was already finalized", uploadID)
		}
	}

	text, err := s.sampler.Sample(ctx, objectKey, 0)
	if err != nil {
		s.releaseGuard(ctx, uploadID)
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusBadRequest, "object_not_found", "uploaded object not found: %s", objectKey)
		}
		return nil, apierr.New(http.StatusInternalServerError, "sample_failed", err)
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = objectKey
	}
	verdict := s.arbiter.Classify(filename, text)

	if !verdict.Accepted {
		if derr := s.store.Delete(ctx, objectKey); derr != nil && !errors.Is(derr, gcp.ErrObjectNotFound) {
			// The rejected object is now orphaned in storage; this must not
			// look like an ordinary rejection.
			s.log.Error("failed to delete rejected upload", "object_key", objectKey, "error", derr)
			return nil, apierr.New(http.StatusInternalServerError, "reject_cleanup_failed",
				fmt.Errorf("rejected upload left in storage at %s: %w", objectKey, derr))
		}
		s.log.Info("Upload rejected", "tenant_id", tenantID, "upload_id", uploadID, "reasons", verdict.Reasons)
		return &FinalizeResult{
			OK:      false,
			Message: "file format not suitable for QA extraction",
			Reasons: verdict.Reasons,
			Stats:   verdict.Stats,
		}, nil
	}

	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		kind = "dialogue"
	}
	monthKey := s.now().UTC().Format("2006-01")
	logKey := uploadLogObjectKey(tenantID, monthKey, uploadID)

	record := AcceptanceRecord{
		UploadID:    uploadID,
		TenantID:    tenantID,
		Kind:        kind,
		ObjectKey:   objectKey,
		MonthKey:    monthKey,
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
		Filename:    strings.TrimSpace(req.Filename),
		ContentType: strings.TrimSpace(req.ContentType),
		Judge: JudgeRecord{
			OK:         true,
			QAMode:     string(verdict.Mode),
			Confidence: verdict.Confidence,
			Reasons:    verdict.Reasons,
			Stats:      verdict.Stats,
		},
		Note: strings.TrimSpace(req.Note),
	}

	if werr := s.store.WriteJSON(ctx, logKey, record); werr != nil {
		// The data object is deliberately kept for investigation.
		s.releaseGuard(ctx, uploadID)
		s.log.Error("failed to write upload log", "upload_log_key", logKey, "error", werr)
		return nil, apierr.New(http.StatusInternalServerError, "upload_log_write_failed",
			fmt.Errorf("failed to write upload log to %s: %w", logKey, werr))
	}

	s.log.Info("Upload accepted", "tenant_id", tenantID, "upload_id", uploadID, "qa_mode", string(verdict.Mode))
	return &FinalizeResult{
		OK:           true,
		UploadID:     uploadID,
		TenantID:     tenantID,
		ContractID:   tenantID,
		ObjectKey:    objectKey,
		QAMode:       string(verdict.Mode),
		Confidence:   verdict.Confidence,
		Reasons:      verdict.Reasons,
		Stats:        verdict.Stats,
		UploadLogKey: logKey,
	}, nil
}

// JudgeMethod is the read-only variant: classify an existing object without
// touching it. When ObjectKey is empty the contract's active dialogue key is
// used.
func (s *uploadService) JudgeMethod(ctx context.Context, req JudgeMethodRequest) (*JudgeMethodResult, error) {
	objectKey := strings.TrimSpace(req.ObjectKey)
	if objectKey == "" {
		if s.contracts == nil {
			return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "object_key required")
		}
		contract, err := s.contracts.GetByID(ctx, nil, req.ContractID)
		if err != nil {
			return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "active dialogue not set (object_key required)")
		}
		if contract.ActiveDialogueObjectKey != nil {
			objectKey = strings.TrimSpace(*contract.ActiveDialogueObjectKey)
		}
		if objectKey == "" {
			return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "active dialogue not set (object_key required)")
		}
	}

	text, err := s.sampler.Sample(ctx, objectKey, req.SampleBytes)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "object_not_found", "object not found: %s", objectKey)
		}
		return nil, apierr.New(http.StatusInternalServerError, "sample_failed", err)
	}

	verdict := s.arbiter.Classify(objectKey, text)
	return &JudgeMethodResult{
		CanExtractQA: verdict.Accepted,
		Method:       string(verdict.Mode),
		Confidence:   verdict.Confidence,
		Reasons:      verdict.Reasons,
		Stats:        verdict.Stats,
	}, nil
}

func (s *uploadService) releaseGuard(ctx context.Context, uploadID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, uploadID); err != nil {
		s.log.Warn("failed to release finalize guard", "upload_id", uploadID, "error", err)
	}
}

func resolveTenantID(tenantID, contractID string) (string, error) {
	if t := strings.TrimSpace(tenantID); t != "" {
		return t, nil
	}
	if c := strings.TrimSpace(contractID); c != "" {
		return c, nil
	}
	return "", apierr.Newf(http.StatusBadRequest, "validation_error", "tenant_id (or contract_id) is required")
}

func validateFileMeta(filename string, sizeBytes int64) error {
	ext := extLower(filename)
	if !allowedUploadExts[ext] {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "file type not allowed (.txt / .json / .csv)")
	}
	if sizeBytes > maxUploadBytes {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "file too large (max 100MB)")
	}
	if sizeBytes < minUploadBytes {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "file too small")
	}
	return nil
}

func extLower(filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

var unsafeNameRunes = regexp.MustCompile(`[^\w.\-()\[\]ぁ-んァ-ン一-龥]+`)

// safeName keeps word characters, dots, dashes, brackets and Japanese text;
// everything else collapses to underscores. Capped at 120 runes.
func safeName(filename string) string {
	s := strings.TrimSpace(filename)
	if s == "" {
		s = "file"
	}
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = unsafeNameRunes.ReplaceAllString(s, "_")
	runes := []rune(s)
	if len(runes) > 120 {
		return string(runes[:120])
	}
	return s
}

func uploadObjectKey(tenantID, monthKey, uploadID, safeFilename string) string {
	return fmt.Sprintf("tenants/%s/uploads/%s/%s_%s", tenantID, monthKey, uploadID, safeFilename)
}

func uploadLogObjectKey(tenantID, monthKey, uploadID string) string {
	return fmt.Sprintf("tenants/%s/upload_logs/%s/%s.json", tenantID, monthKey, uploadID)
}
