package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type UploadHandler struct {
	log     *logger.Logger
	uploads services.UploadService
}

func NewUploadHandler(log *logger.Logger, uploads services.UploadService) *UploadHandler {
	return &UploadHandler{
		log:     log.With("handler", "UploadHandler"),
		uploads: uploads,
	}
}

// CreateUploadURL handles POST /v1/admin/upload-url.
func (h *UploadHandler) CreateUploadURL(c *gin.Context) {
	var req services.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.uploads.CreateUploadURL(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// FinalizeUpload handles POST /v1/admin/upload-finalize.
func (h *UploadHandler) FinalizeUpload(c *gin.Context) {
	var req services.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.uploads.FinalizeUpload(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
