package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.RWMutex
	attendants map[string]Attendant
}

// NewMemoryRepository builds an in-memory attendant store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{attendants: make(map[string]Attendant)}
}

func (r *memoryRepository) Create(_ context.Context, a Attendant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.attendants[a.Email]; exists {
		return ErrExists
	}
	r.attendants[a.Email] = a
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Attendant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attendants[email]
	if !ok {
		return Attendant{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Attendant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attendants {
		if a.ID == id {
			return a, nil
		}
	}
	return Attendant{}, ErrNotFound
}

func (r *memoryRepository) BumpTokenVersion(_ context.Context, id string) (int, error) {
	var version int
	err := r.update(id, func(a *Attendant) {
		a.TokenVersion++
		version = a.TokenVersion
	})
	return version, err
}

func (r *memoryRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(a *Attendant) {
		t := at.UTC()
		a.LastLogin = &t
	})
}

func (r *memoryRepository) update(id string, apply func(*Attendant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, a := range r.attendants {
		if a.ID == id {
			apply(&a)
			r.attendants[email] = a
			return nil
		}
	}
	return ErrNotFound
}
