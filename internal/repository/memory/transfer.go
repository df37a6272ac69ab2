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

// TransferRequestRepository implements repository.TransferRequestRepository.
// Accept reassigns the order through the shared OrderRepository under both
// locks, so the two writes are observed together.
type TransferRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]domain.TransferRequest
	orders   *OrderRepository
}

// NewTransferRequestRepository creates a transfer repository that reassigns
// orders held by orders.
func NewTransferRequestRepository(orders *OrderRepository) *TransferRequestRepository {
	return &TransferRequestRepository{
		requests: make(map[string]domain.TransferRequest),
		orders:   orders,
	}
}

func (r *TransferRequestRepository) Create(_ context.Context, req *domain.TransferRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.OrderID == req.OrderID && existing.Status == domain.TransferStatusPending {
			return apperrors.Conflict(fmt.Sprintf("order %s already has a pending transfer request", req.OrderID))
		}
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *TransferRequestRepository) Get(_ context.Context, id string) (*domain.TransferRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NotFound("transfer request", id)
	}
	return &req, nil
}

func (r *TransferRequestRepository) GetPendingByOrder(_ context.Context, orderID string) (*domain.TransferRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.OrderID == orderID && req.Status == domain.TransferStatusPending {
			return &req, nil
		}
	}
	return nil, apperrors.NotFound("pending transfer request for order", orderID)
}

func (r *TransferRequestRepository) Resolve(_ context.Context, id string, status domain.TransferStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(id, status, at)
}

func (r *TransferRequestRepository) resolveLocked(id string, status domain.TransferStatus, at time.Time) error {
	req, ok := r.requests[id]
	if !ok {
		return apperrors.NotFound("transfer request", id)
	}
	if req.Status != domain.TransferStatusPending {
		return apperrors.StateConflict(string(req.Status), "transfer request is no longer pending")
	}
	req.Status = status
	req.ResolvedAt = &at
	r.requests[id] = req
	return nil
}

func (r *TransferRequestRepository) Accept(_ context.Context, req *domain.TransferRequest, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders.mu.Lock()
	defer r.orders.mu.Unlock()

	stored, ok := r.requests[req.ID]
	if !ok {
		return apperrors.NotFound("transfer request", req.ID)
	}
	if stored.Status != domain.TransferStatusPending {
		return apperrors.StateConflict(string(stored.Status), "transfer request is no longer pending")
	}
	if err := r.orders.reassign(stored.OrderID, stored.RequesterCustomerID, stored.RequesterEmail); err != nil {
		return err
	}
	return r.resolveLocked(req.ID, domain.TransferStatusAccepted, at)
}

func (r *TransferRequestRepository) ListPendingCreatedBefore(_ context.Context, before time.Time, limit int) ([]domain.TransferRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TransferRequest
	for _, req := range r.requests {
		if req.Status == domain.TransferStatusPending && req.CreatedAt.Before(before) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
