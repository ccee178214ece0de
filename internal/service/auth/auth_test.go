package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"parking-service/internal/domain/auth"
	xerrors "parking-service/internal/pkg/errors"
	"parking-service/internal/pkg/jwt"
	"parking-service/internal/pkg/ratelimit"
	"parking-service/internal/repository/memory"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T, maxAttempts int64) *AuthService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	mgr := &jwt.Manager{
		Generator: jwt.NewGenerator(key, "parking-service", "parking-operators", "", time.Hour),
		Verifier:  jwt.NewVerifier(&key.PublicKey, "parking-service", "parking-operators"),
	}

	svc := NewAuthService(memory.NewOperatorRepository(), mgr, ratelimit.NewMemoryLimiter(maxAttempts, 15*time.Minute), zap.NewNop())
	svc.SetHashCost(bcrypt.MinCost)
	return svc
}

func TestLogin(t *testing.T) {
	svc := newService(t, 5)
	ctx := context.Background()

	if _, err := svc.EnsureOperator(ctx, "admin", "admin123", auth.RoleAdministrator); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "admin", "admin123", nil},
		{"username is case-insensitive", "ADMIN", "admin123", nil},
		{"wrong password", "admin", "nope", xerrors.ErrUnauthorized},
		{"unknown user", "ghost", "admin123", xerrors.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(ctx, &auth.LoginRequest{Username: tt.username, Password: tt.password}, "127.0.0.1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			claims, err := svc.jwtManager.Verifier.Verify(resp.AccessToken)
			if err != nil {
				t.Fatalf("issued token does not verify: %v", err)
			}
			if claims.Role != auth.RoleAdministrator || claims.OperatorID != resp.User.UserID {
				t.Errorf("claims = %+v", claims)
			}
			if resp.TokenType != "Bearer" || resp.ExpiresIn <= 0 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	svc := newService(t, 2)
	ctx := context.Background()
	if _, err := svc.EnsureOperator(ctx, "attendant1", "attendant123", auth.RoleAttendant); err != nil {
		t.Fatal(err)
	}

	bad := &auth.LoginRequest{Username: "attendant1", Password: "wrong"}
	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, bad, "10.1.1.1"); !errors.Is(err, xerrors.ErrUnauthorized) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}

	good := &auth.LoginRequest{Username: "attendant1", Password: "attendant123"}
	if _, err := svc.Login(ctx, good, "10.1.1.1"); !errors.Is(err, xerrors.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if _, err := svc.Login(ctx, good, "10.2.2.2"); err != nil {
		t.Fatalf("other client should not be limited: %v", err)
	}
}

func TestEnsureOperatorKeepsExistingAccount(t *testing.T) {
	svc := newService(t, 5)
	ctx := context.Background()

	first, err := svc.EnsureOperator(ctx, "admin", "admin123", auth.RoleAdministrator)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.EnsureOperator(ctx, "admin", "changed", auth.RoleAdministrator)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || first.PasswordHash != second.PasswordHash {
		t.Errorf("existing operator was replaced: %+v vs %+v", first, second)
	}

	if _, err := svc.EnsureOperator(ctx, "boss", "x", "Owner"); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("unknown role: got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	svc := newService(t, 5)
	ctx := context.Background()

	if _, err := svc.EnsureOperator(ctx, "attendant1", "attendant123", auth.RoleAttendant); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Login(ctx, &auth.LoginRequest{Username: "attendant1", Password: "attendant123"}, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Role != auth.RoleAttendant || claims.OperatorID != resp.User.UserID {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := svc.ValidateToken(ctx, resp.AccessToken+"x"); !errors.Is(err, xerrors.ErrUnauthorized) {
		t.Errorf("tampered token err = %v, want ErrUnauthorized", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newService(t, 5)
	ctx := context.Background()

	if _, err := svc.EnsureOperator(ctx, "admin", "admin123", auth.RoleAdministrator); err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Login(ctx, &auth.LoginRequest{Username: "admin", Password: "admin123"}, "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(ctx, claims.OperatorID, claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, resp.AccessToken); !errors.Is(err, xerrors.ErrUnauthorized) {
		t.Errorf("revoked token err = %v, want ErrUnauthorized", err)
	}
}
