package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type JudgeHandler struct {
	log     *logger.Logger
	uploads services.UploadService
	acl     services.ACLService
}

func NewJudgeHandler(log *logger.Logger, uploads services.UploadService, acl services.ACLService) *JudgeHandler {
	return &JudgeHandler{
		log:     log.With("handler", "JudgeHandler"),
		uploads: uploads,
		acl:     acl,
	}
}

type judgeMethodBody struct {
	ContractID  string `json:"contract_id" binding:"required"`
	ObjectKey   string `json:"object_key"`
	SampleBytes int64  `json:"sample_bytes"`
}

// JudgeMethod handles POST /v1/admin/dialogues/judge-method: read-only
// classification of an already stored object, contract admins only.
func (h *JudgeHandler) JudgeMethod(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var body judgeMethodBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	contractID, err := uuid.Parse(body.ContractID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	if err := h.acl.RequireContractAdmin(c.Request.Context(), identity.UID, contractID); err != nil {
		response.RespondServiceError(c, err)
		return
	}

	result, err := h.uploads.JudgeMethod(c.Request.Context(), services.JudgeMethodRequest{
		ContractID:  contractID,
		ObjectKey:   body.ObjectKey,
		SampleBytes: body.SampleBytes,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
