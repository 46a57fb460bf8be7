package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/yigit/bursar/internal/app/models"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

// MemoryFeeStore is a FeeStore kept in process memory, used for tests and ephemeral environments.
// Every value crossing the boundary is cloned so callers never share state with the store.
type MemoryFeeStore struct {
	mu          sync.RWMutex
	obligations map[uuid.UUID]*models.FeeObligation
	payments    map[uuid.UUID][]*models.Payment

	// failNextCommits injects version conflicts into CommitPayment, see FailNextCommits
	failNextCommits int
}

var _ FeeStore = (*MemoryFeeStore)(nil)

// NewMemoryFeeStore creates an empty MemoryFeeStore
func NewMemoryFeeStore() *MemoryFeeStore {
	return &MemoryFeeStore{
		obligations: make(map[uuid.UUID]*models.FeeObligation),
		payments:    make(map[uuid.UUID][]*models.Payment),
	}
}

// FailNextCommits makes the next n CommitPayment calls fail with a version conflict.
func (s *MemoryFeeStore) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextCommits = n
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	if p.Reference != nil {
		ref := *p.Reference
		c.Reference = &ref
	}
	return &c
}

// CreateObligation stores a new obligation
func (s *MemoryFeeStore) CreateObligation(_ context.Context, o *models.FeeObligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[o.ID]; ok {
		return apperrors.NewConflictError("obligation already exists")
	}
	s.obligations[o.ID] = o.Clone()
	return nil
}

// GetObligation returns a copy of the stored obligation
func (s *MemoryFeeStore) GetObligation(_ context.Context, id uuid.UUID) (*models.FeeObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, apperrors.ErrObligationNotFound
	}
	return o.Clone(), nil
}

// ListObligations returns copies matching StudentID and Category, oldest due date first
func (s *MemoryFeeStore) ListObligations(_ context.Context, filter models.ObligationFilter) ([]*models.FeeObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.FeeObligation{}
	for _, o := range s.obligations {
		if filter.StudentID != "" && o.StudentID != filter.StudentID {
			continue
		}
		if filter.Category != "" && o.Category != filter.Category {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// checkVersion must be called with mu held
func (s *MemoryFeeStore) checkVersion(id uuid.UUID, expectedVersion int64) (*models.FeeObligation, error) {
	stored, ok := s.obligations[id]
	if !ok {
		return nil, apperrors.ErrObligationNotFound
	}
	if stored.Version != expectedVersion {
		return nil, apperrors.ErrVersionConflict
	}
	return stored, nil
}

// UpdateObligation replaces the stored obligation when the version matches
func (s *MemoryFeeStore) UpdateObligation(_ context.Context, o *models.FeeObligation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.checkVersion(o.ID, expectedVersion); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	s.obligations[o.ID] = o.Clone()
	return nil
}

// UpdateStatus writes only the status columns when the version matches
func (s *MemoryFeeStore) UpdateStatus(_ context.Context, o *models.FeeObligation, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.checkVersion(o.ID, expectedVersion)
	if err != nil {
		return err
	}
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	stored.Version = expectedVersion + 1
	o.Version = stored.Version
	return nil
}

// CommitPayment swaps in the updated obligation and appends the payment under one lock
func (s *MemoryFeeStore) CommitPayment(_ context.Context, o *models.FeeObligation, expectedVersion int64, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCommits > 0 {
		s.failNextCommits--
		return apperrors.ErrVersionConflict
	}
	if _, err := s.checkVersion(o.ID, expectedVersion); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	s.obligations[o.ID] = o.Clone()
	s.payments[o.ID] = append(s.payments[o.ID], clonePayment(p))
	return nil
}

// DeleteObligation removes an obligation and its payments
func (s *MemoryFeeStore) DeleteObligation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[id]; !ok {
		return apperrors.ErrObligationNotFound
	}
	delete(s.obligations, id)
	delete(s.payments, id)
	return nil
}

// ListPayments returns copies by obligation or student, most recent payment date first
func (s *MemoryFeeStore) ListPayments(_ context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Payment{}
	for obligationID, payments := range s.payments {
		if filter.ObligationID != uuid.Nil && obligationID != filter.ObligationID {
			continue
		}
		if filter.StudentID != "" && s.obligations[obligationID].StudentID != filter.StudentID {
			continue
		}
		for _, p := range payments {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return a.PaymentDate.After(b.PaymentDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
	return out, nil
}
