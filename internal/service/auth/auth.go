// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parking-service/internal/domain/auth"
	xerrors "parking-service/internal/pkg/errors"
	"parking-service/internal/pkg/jwt"
	"parking-service/internal/pkg/ratelimit"
	"parking-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	operators    auth.OperatorRepository
	jwtManager   *jwt.Manager
	loginLimiter ratelimit.Limiter
	blacklist    session.Blacklist
	logger       *zap.Logger
	hashCost     int
}

func NewAuthService(
	operators auth.OperatorRepository,
	jwtManager *jwt.Manager,
	loginLimiter ratelimit.Limiter,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		operators:    operators,
		jwtManager:   jwtManager,
		loginLimiter: loginLimiter,
		blacklist:    session.NewMemoryBlacklist(),
		logger:       logger,
		hashCost:     bcrypt.DefaultCost,
	}
}

// SetBlacklist replaces the in-process token blacklist, e.g. with redis.
func (s *AuthService) SetBlacklist(blacklist session.Blacklist) {
	s.blacklist = blacklist
}

// SetHashCost overrides the bcrypt cost used for new passwords.
func (s *AuthService) SetHashCost(cost int) {
	s.hashCost = cost
}

// Login verifies operator credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest, ipAddress string) (*auth.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	limitKey := ipAddress + ":" + strings.ToLower(username)

	allowed, remaining, err := s.loginLimiter.Allow(ctx, limitKey)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.Wrap(xerrors.ErrRateLimited, "too many login attempts, please try again later")
	}

	op, err := s.operators.FindByUsername(ctx, username)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.Wrap(xerrors.ErrUnauthorized, "incorrect username or password")
		}
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("failed login attempt",
			zap.String("username", username),
			zap.String("ip", ipAddress),
			zap.Int64("attempts_remaining", remaining),
		)
		return nil, xerrors.Wrap(xerrors.ErrUnauthorized, "incorrect username or password")
	}

	if err := s.loginLimiter.Reset(ctx, limitKey); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	token, jti, expiresAt, err := s.jwtManager.Generator.Generate(op.ID, op.Username, op.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.Info("operator logged in",
		zap.Int64("user_id", op.ID),
		zap.String("username", op.Username),
		zap.String("role", op.Role),
		zap.String("jti", jti),
	)

	return &auth.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		ExpiresAt:   expiresAt,
		User: auth.OperatorInfo{
			UserID:   op.ID,
			Username: op.Username,
			Role:     op.Role,
		},
	}, nil
}

// EnsureOperator creates an operator account if the username is free
// (called on startup). Existing accounts keep their password.
func (s *AuthService) EnsureOperator(ctx context.Context, username, password, role string) (*auth.Operator, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("operator username and password must be provided")
	}
	if !auth.ValidRole(role) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "unknown role "+role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op, err := s.operators.Ensure(ctx, &auth.Operator{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure operator %s: %w", username, err)
	}

	s.logger.Info("operator available",
		zap.String("username", op.Username),
		zap.String("role", op.Role),
		zap.Int64("user_id", op.ID),
	)
	return op, nil
}

// ValidateToken verifies an access token and returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.Verify(token)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUnauthorized, err.Error())
	}

	revoked, err := s.blacklist.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, xerrors.Wrap(xerrors.ErrUnauthorized, "token has been revoked")
	}
	return claims, nil
}

// Logout revokes a token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, operatorID int64, jti string, expiresAt time.Time) error {
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		return err
	}

	s.logger.Info("operator logged out",
		zap.Int64("user_id", operatorID),
		zap.String("jti", jti),
	)
	return nil
}
