package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type QAHandler struct {
	log *logger.Logger
	qa  services.QAService
}

func NewQAHandler(log *logger.Logger, qa services.QAService) *QAHandler {
	return &QAHandler{
		log: log.With("handler", "QAHandler"),
		qa:  qa,
	}
}

// Build handles POST /v1/qa/build: relay to the knowledge API, returning
// its body plus the recovered qa_file_object_key.
func (h *QAHandler) Build(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body services.QABuildRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.qa.BuildQA(c.Request.Context(), identity.UID, body)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GenerateFile handles POST /v1/qa/generate-file: pure relay, upstream body
// returned as-is.
func (h *QAHandler) GenerateFile(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body services.QAGenerateFileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.qa.GenerateFile(c.Request.Context(), identity.UID, body)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
