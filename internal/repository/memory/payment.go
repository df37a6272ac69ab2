package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// PaymentSessionRepository implements repository.PaymentSessionRepository.
type PaymentSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.PaymentSession
}

// NewPaymentSessionRepository creates an empty payment session repository.
func NewPaymentSessionRepository() *PaymentSessionRepository {
	return &PaymentSessionRepository{sessions: make(map[string]domain.PaymentSession)}
}

func (r *PaymentSessionRepository) Create(_ context.Context, s *domain.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return apperrors.Conflict(fmt.Sprintf("payment session %s already exists", s.ID))
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *PaymentSessionRepository) Get(_ context.Context, id string) (*domain.PaymentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("payment session", id)
	}
	return &s, nil
}

func (r *PaymentSessionRepository) ListByCart(_ context.Context, cartID string) ([]domain.PaymentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PaymentSession
	for _, s := range r.sessions {
		if s.CartID == cartID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *PaymentSessionRepository) GetByReference(_ context.Context, provider, reference string) (*domain.PaymentSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ProviderCode != provider {
			continue
		}
		if s.ID == reference || (s.ProviderReference != "" && s.ProviderReference == reference) {
			return &s, nil
		}
	}
	return nil, apperrors.NotFound("payment session", reference)
}

func (r *PaymentSessionRepository) UpdateStatus(_ context.Context, id string, status domain.PaymentStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return apperrors.NotFound("payment session", id)
	}
	s.Status = status
	s.UpdatedAt = at
	r.sessions[id] = s
	return nil
}

func (r *PaymentSessionRepository) Select(_ context.Context, cartID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.sessions[sessionID]
	if !ok || target.CartID != cartID {
		return apperrors.NotFound("payment session", sessionID)
	}
	for id, s := range r.sessions {
		if s.CartID != cartID {
			continue
		}
		s.IsSelected = id == sessionID
		r.sessions[id] = s
	}
	return nil
}
