package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type InviteHandler struct {
	log     *logger.Logger
	invites services.InviteService
	acl     services.ACLService
}

func NewInviteHandler(log *logger.Logger, invites services.InviteService, acl services.ACLService) *InviteHandler {
	return &InviteHandler{
		log:     log.With("handler", "InviteHandler"),
		invites: invites,
		acl:     acl,
	}
}

type createInviteBody struct {
	ContractID string `json:"contract_id" binding:"required"`
	Email      string `json:"email" binding:"required"`
}

// Create handles POST /v1/invites (contract admin only).
func (h *InviteHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body createInviteBody
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

	result, err := h.invites.Create(c.Request.Context(), contractID, body.Email)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type consumeInviteBody struct {
	Token string `json:"token" binding:"required"`
}

// Consume handles POST /v1/invites/consume. Signed-in users only; the
// invited email does not have to match the caller's.
func (h *InviteHandler) Consume(c *gin.Context) {
	if _, ok := requireIdentity(c); !ok {
		return
	}
	var body consumeInviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.invites.Consume(c.Request.Context(), body.Token)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
