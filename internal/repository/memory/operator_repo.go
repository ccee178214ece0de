// internal/repository/memory/operator_repo.go
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"parking-service/internal/domain/auth"
	xerrors "parking-service/internal/pkg/errors"
)

type OperatorRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*auth.Operator
	lastID     int64
}

func NewOperatorRepository() *OperatorRepository {
	return &OperatorRepository{byUsername: make(map[string]*auth.Operator)}
}

func (r *OperatorRepository) FindByUsername(_ context.Context, username string) (*auth.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (r *OperatorRepository) Ensure(_ context.Context, op *auth.Operator) (*auth.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(op.Username)
	if existing, ok := r.byUsername[key]; ok {
		cp := *existing
		return &cp, nil
	}

	r.lastID++
	stored := *op
	stored.ID = r.lastID
	stored.CreatedAt = time.Now().UTC()
	r.byUsername[key] = &stored

	cp := stored
	return &cp, nil
}
