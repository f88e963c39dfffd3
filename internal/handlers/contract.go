package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type ContractHandler struct {
	log          *logger.Logger
	contracts    services.ContractService
	contractDocs services.ContractDocService
}

func NewContractHandler(log *logger.Logger, contracts services.ContractService, contractDocs services.ContractDocService) *ContractHandler {
	return &ContractHandler{
		log:          log.With("handler", "ContractHandler"),
		contracts:    contracts,
		contractDocs: contractDocs,
	}
}

// Create handles POST /v1/contract: relational contract creation, caller
// becomes admin.
func (h *ContractHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body services.ContractCreateInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.contracts.Create(c.Request.Context(), identity.UID, body)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// UpdateDoc handles POST /v1/contracts/update: generation-locked mutation
// of the legacy contract document.
func (h *ContractHandler) UpdateDoc(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body services.ContractDocUpdateInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.contractDocs.Update(c.Request.Context(), identity.UID, body); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

type contractIDBody struct {
	ContractID string `json:"contract_id"`
}

// MarkPaidDoc handles POST /v1/contracts/mark-paid.
func (h *ContractHandler) MarkPaidDoc(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body contractIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.contractDocs.MarkPaid(c.Request.Context(), identity.UID, body.ContractID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
