package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ankinstructor/ank-admin-api/internal/clients/knowledge"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
)

// QAService relays QA build/generate requests to the knowledge API after
// checking contract membership. Responses pass through untouched apart from
// the recovered qa_file_object_key.
type QAService interface {
	BuildQA(ctx context.Context, uid string, req QABuildRequest) (map[string]any, error)
	GenerateFile(ctx context.Context, uid string, req QAGenerateFileRequest) (map[string]any, error)
}

type QABuildRequest struct {
	TenantID     string `json:"tenant_id"`
	ContractID   string `json:"contract_id"` // accepted as a tenant_id alias
	ObjectKey    string `json:"object_key"`
	OutputFormat string `json:"output_format"`
}

type QAGenerateFileRequest struct {
	ContractID string `json:"contract_id"`
	ObjectKey  string `json:"object_key"`
	Format     string `json:"format"`
}

type qaService struct {
	log       *logger.Logger
	knowledge knowledge.Client
	acl       ACLService
}

func NewQAService(log *logger.Logger, kc knowledge.Client, acl ACLService) (QAService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if kc == nil {
		return nil, fmt.Errorf("knowledge client required")
	}
	if acl == nil {
		return nil, fmt.Errorf("acl service required")
	}
	return &qaService{
		log:       log.With("service", "QAService"),
		knowledge: kc,
		acl:       acl,
	}, nil
}

var allowedQAFormats = map[string]bool{"csv": true, "json": true, "jsonl": true}

func (s *qaService) BuildQA(ctx context.Context, uid string, req QABuildRequest) (map[string]any, error) {
	tenantID, err := resolveTenantID(req.TenantID, req.ContractID)
	if err != nil {
		return nil, err
	}
	objectKey := strings.TrimSpace(req.ObjectKey)
	if objectKey == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "object_key required")
	}
	outputFormat := strings.ToLower(strings.TrimSpace(req.OutputFormat))
	if outputFormat == "" {
		outputFormat = "csv"
	}
	if !allowedQAFormats[outputFormat] {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "output_format must be csv/json/jsonl")
	}

	if err := s.requireMembership(ctx, uid, tenantID); err != nil {
		return nil, err
	}

	body, err := s.knowledge.BuildQA(ctx, tenantID, objectKey, outputFormat)
	if err != nil {
		return nil, upstreamToAPIError(err)
	}

	qaFileKey := knowledge.ExtractQAFileKey(body)
	out := map[string]any{
		"ok":          true,
		"tenant_id":   tenantID,
		"contract_id": tenantID, // mirrors tenant_id for older UIs
		"object_key":  objectKey,
		"output_format": outputFormat,
		"knowledge":   body,
	}
	if qaFileKey != "" {
		out["qa_file_object_key"] = qaFileKey
	} else {
		out["qa_file_object_key"] = nil
	}
	return out, nil
}

func (s *qaService) GenerateFile(ctx context.Context, uid string, req QAGenerateFileRequest) (map[string]any, error) {
	contractID := strings.TrimSpace(req.ContractID)
	if contractID == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "contract_id is required")
	}
	objectKey := strings.TrimSpace(req.ObjectKey)
	if objectKey == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "object_key is required")
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "json"
	}
	if !allowedQAFormats[format] {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "format must be csv/json/jsonl")
	}

	if err := s.requireMembership(ctx, uid, contractID); err != nil {
		return nil, err
	}

	body, err := s.knowledge.GenerateFile(ctx, contractID, objectKey, format)
	if err != nil {
		return nil, upstreamToAPIError(err)
	}
	return body, nil
}

// requireMembership applies the relational ACL when the id parses as a
// contract UUID; ids from the document-storage world have no membership
// table to consult and pass through.
func (s *qaService) requireMembership(ctx context.Context, uid, id string) error {
	contractID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return s.acl.RequireContractMember(ctx, uid, contractID)
}

func upstreamToAPIError(err error) error {
	var ue *knowledge.UpstreamError
	if errors.As(err, &ue) {
		return apierr.New(http.StatusBadGateway, "knowledge_upstream_error", ue)
	}
	return apierr.New(http.StatusBadGateway, "knowledge_unreachable",
		fmt.Errorf("failed to call knowledge api: %w", err))
}
