package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/auth-service/internal/constants"
	apperrors "github.com/taskhub/auth-service/internal/errors"
	"github.com/taskhub/auth-service/internal/middleware"
	"github.com/taskhub/auth-service/internal/service"
	ctxutil "github.com/taskhub/auth-service/pkg/context"
	"github.com/taskhub/auth-service/pkg/logger"
)

type UserHandler struct {
	authService *service.AuthService
}

func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Me returns the authenticated user's public projection. The JWT middleware
// has already validated the token; a stale claim for a deleted user comes
// back as 401.
func (h *UserHandler) Me(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Me")

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		logger.WarnWithContext(ctx, "Me without authenticated user").
			Log()
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized))
		return
	}
	ctx = ctxutil.WithUserID(ctx, userID)

	user, err := h.authService.GetCurrentUser(ctx, userID)
	if err != nil {
		c.JSON(apperrors.ToHTTPStatus(err),
			constants.BuildErrorResponse(apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(user))
}
