package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

type AccountHandler struct {
	log      *logger.Logger
	accounts services.AccountService
}

func NewAccountHandler(log *logger.Logger, accounts services.AccountService) *AccountHandler {
	return &AccountHandler{
		log:      log.With("handler", "AccountHandler"),
		accounts: accounts,
	}
}

// Get handles GET /v1/account.
func (h *AccountHandler) Get(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), identity.UID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"account": account})
}

type createAccountBody struct {
	Name string `json:"name"`
}

// Create handles POST /v1/account. Creating twice returns the existing
// account with created:false.
func (h *AccountHandler) Create(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var body createAccountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.accounts.Create(c.Request.Context(), identity.UID, identity.Email, body.Name)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
