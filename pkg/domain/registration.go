package domain

import (
	"maps"
	"sync"
	"time"
)

type Registration struct {
	WorkflowID   string
	OwnerID      string
	Config       map[string]any
	CredentialID string
	RegisteredAt time.Time
}

// RegistrationStore holds the live trigger registrations of this process.
// Entries are lost on restart and rebuilt by the startup reload.
type RegistrationStore interface {
	Put(triggerKey string, registration Registration)
	Delete(triggerKey string, workflowID string) (Registration, bool)
	Get(triggerKey string, workflowID string) (Registration, bool)
	List(triggerKey string) map[string]Registration
	Count(triggerKey string) int
}

type inMemoryRegistrationStore struct {
	mu            sync.RWMutex
	registrations map[string]map[string]Registration
}

func NewInMemoryRegistrationStore() RegistrationStore {
	return &inMemoryRegistrationStore{
		registrations: make(map[string]map[string]Registration),
	}
}

func (s *inMemoryRegistrationStore) Put(triggerKey string, registration Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byWorkflow, ok := s.registrations[triggerKey]
	if !ok {
		byWorkflow = make(map[string]Registration)
		s.registrations[triggerKey] = byWorkflow
	}

	byWorkflow[registration.WorkflowID] = registration
}

func (s *inMemoryRegistrationStore) Delete(triggerKey string, workflowID string) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byWorkflow, ok := s.registrations[triggerKey]
	if !ok {
		return Registration{}, false
	}

	registration, ok := byWorkflow[workflowID]
	if !ok {
		return Registration{}, false
	}

	delete(byWorkflow, workflowID)

	if len(byWorkflow) == 0 {
		delete(s.registrations, triggerKey)
	}

	return registration, true
}

func (s *inMemoryRegistrationStore) Get(triggerKey string, workflowID string) (Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registration, ok := s.registrations[triggerKey][workflowID]

	return registration, ok
}

// List returns a snapshot copy safe to iterate while registrations change.
func (s *inMemoryRegistrationStore) List(triggerKey string) map[string]Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.registrations[triggerKey])
}

func (s *inMemoryRegistrationStore) Count(triggerKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.registrations[triggerKey])
}
