package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type TenantHandler struct {
	log     *logger.Logger
	tenants services.TenantService
}

func NewTenantHandler(log *logger.Logger, tenants services.TenantService) *TenantHandler {
	return &TenantHandler{
		log:     log.With("handler", "TenantHandler"),
		tenants: tenants,
	}
}

// List handles GET /v1/tenants?account_id=...
func (h *TenantHandler) List(c *gin.Context) {
	if _, ok := requireIdentity(c); !ok {
		return
	}
	accountID := strings.TrimSpace(c.Query("account_id"))
	if accountID == "" {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errMissing("account_id"))
		return
	}

	tenants, err := h.tenants.List(c.Request.Context(), accountID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tenants": tenants})
}

type createTenantBody struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// Create handles POST /v1/tenant.
func (h *TenantHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var body createTenantBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	tenantID, err := h.tenants.Create(c.Request.Context(), identity.UID, body.AccountID, body.Name)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tenant_id": tenantID})
}

// Get handles GET /v1/tenant?tenant_id=...&account_id=... (account_id
// optional; resolved via the caller's tenant index when absent).
func (h *TenantHandler) Get(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	doc, err := h.tenants.Get(c.Request.Context(), identity.UID, c.Query("tenant_id"), c.Query("account_id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, doc)
}

// UpsertContract handles POST /v1/tenant/contract.
func (h *TenantHandler) UpsertContract(c *gin.Context) {
	if _, ok := requireIdentity(c); !ok {
		return
	}
	var body services.TenantContractInput
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.tenants.UpsertContract(c.Request.Context(), body); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

type markPaidBody struct {
	AccountID string `json:"account_id"`
	TenantID  string `json:"tenant_id"`
}

// MarkPaid handles POST /v1/tenant/mark-paid.
func (h *TenantHandler) MarkPaid(c *gin.Context) {
	if _, ok := requireIdentity(c); !ok {
		return
	}
	var body markPaidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.tenants.MarkPaid(c.Request.Context(), body.AccountID, body.TenantID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// Pricing handles GET /v1/pricing.
func (h *TenantHandler) Pricing(c *gin.Context) {
	if _, ok := requireIdentity(c); !ok {
		return
	}
	data, err := h.tenants.Pricing(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, data)
}

// System handles GET /v1/system (public).
func (h *TenantHandler) System(c *gin.Context) {
	data, err := h.tenants.System(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, data)
}
