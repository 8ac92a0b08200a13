package patient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a mutex guarded Repository for tests and local runs.
type InMemoryRepository struct {
	mu           sync.Mutex
	byID         map[uuid.UUID]*Patient
	byNationalID map[string]uuid.UUID
	mrnSeq       int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:         make(map[uuid.UUID]*Patient),
		byNationalID: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepository) GetByNationalID(_ context.Context, nationalID string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byNationalID[nationalID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *InMemoryRepository) Register(_ context.Context, reg Registration) (*Patient, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if id, ok := r.byNationalID[reg.NationalID]; ok {
		existing := r.byID[id]
		if !SameName(existing.Name, reg.Name) {
			return nil, false, ErrIdentityConflict
		}
		existing.BirthDate = reg.BirthDate
		existing.Address = reg.Address
		existing.Phone = reg.Phone
		existing.UpdatedAt = now
		cp := *existing
		return &cp, false, nil
	}

	r.mrnSeq++
	p := &Patient{
		ID:                  uuid.New(),
		NationalID:          reg.NationalID,
		Name:                reg.Name,
		BirthDate:           reg.BirthDate,
		Address:             reg.Address,
		Phone:               reg.Phone,
		MedicalRecordNumber: formatMRN(r.mrnSeq),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.byID[p.ID] = p
	r.byNationalID[p.NationalID] = p.ID

	cp := *p
	return &cp, true, nil
}
