package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docflow-backend/internal/http/response"
	pkgerrors "github.com/yungbote/docflow-backend/internal/pkg/errors"
)

// respondDomainError maps the sentinel error taxonomy onto HTTP codes so
// every handler reports failures the same way.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrIllegalTransition):
		response.RespondError(c, http.StatusBadRequest, "illegal_transition", err)
	case errors.Is(err, pkgerrors.ErrStaleVersion):
		response.RespondError(c, http.StatusConflict, "stale_version", err)
	case errors.Is(err, pkgerrors.ErrLockHeld):
		response.RespondError(c, http.StatusLocked, "lock_held", err)
	case errors.Is(err, pkgerrors.ErrLeaseExpired):
		response.RespondError(c, http.StatusConflict, "lease_expired", err)
	case errors.Is(err, pkgerrors.ErrDimensionMismatch):
		response.RespondError(c, http.StatusBadRequest, "dimension_mismatch", err)
	case errors.Is(err, pkgerrors.ErrAccessDenied):
		response.RespondError(c, http.StatusForbidden, "access_denied", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		response.RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
