// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"parking-service/internal/domain/auth"
	"parking-service/internal/middleware"
	"parking-service/internal/pkg/response"
	authUsecase "parking-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login exchanges operator credentials for an access token
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	loginResp, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.FromError(c, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// Logout revokes the caller's token
func (h *AuthHandler) Logout(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)
	jti, _ := middleware.GetJTI(c)
	expiresAt, ok := middleware.GetTokenExpiry(c)
	if jti == "" || !ok {
		response.Error(c, http.StatusBadRequest, "token cannot be revoked", nil)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), operatorID, jti, expiresAt); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("user_id", operatorID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// GetMe returns the identity carried by the caller's token
func (h *AuthHandler) GetMe(c *gin.Context) {
	role, _ := middleware.GetRole(c)
	response.Success(c, http.StatusOK, "current operator", auth.OperatorInfo{
		UserID:   middleware.MustGetOperatorID(c),
		Username: middleware.GetUsername(c),
		Role:     role,
	})
}
