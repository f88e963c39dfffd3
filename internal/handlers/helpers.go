package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ankinstructor/ank-admin-api/internal/http/response"
	"github.com/ankinstructor/ank-admin-api/internal/middleware"
	"github.com/ankinstructor/ank-admin-api/internal/services"
)

// requireIdentity fetches the authenticated identity or writes the 401
// itself; callers just bail on ok == false.
func requireIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("no identity in context"))
		return services.Identity{}, false
	}
	return identity, true
}

func errMissing(field string) error {
	return fmt.Errorf("%s required", field)
}
