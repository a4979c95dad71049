package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
)

// Store is an in-process domain.Store used by tests and local runs.
type Store struct {
	mu          sync.RWMutex
	workflows   map[string]domain.Workflow
	credentials map[string]domain.Credential
	executions  map[string]domain.Execution

	// FailPollingStateWrites makes UpdatePollingState fail, for exercising
	// redelivery after a lost cursor write.
	FailPollingStateWrites bool
}

var ErrWriteFailed = errors.New("memory store: write failed")

func New() *Store {
	return &Store{
		workflows:   make(map[string]domain.Workflow),
		credentials: make(map[string]domain.Credential),
		executions:  make(map[string]domain.Execution),
	}
}

func (s *Store) CreateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[workflow.ID] = workflow

	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[id]
	if !ok {
		return domain.Workflow{}, domain.NewNotFoundError("workflow", id)
	}

	return workflow, nil
}

func (s *Store) GetWorkflowsByIDs(ctx context.Context, ids []string) ([]domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := []domain.Workflow{}
	for _, id := range ids {
		if workflow, ok := s.workflows[id]; ok {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

func (s *Store) ListWorkflowsByOwner(ctx context.Context, ownerID string) ([]domain.Workflow, error) {
	return s.filterWorkflows(func(w domain.Workflow) bool { return w.OwnerID == ownerID }), nil
}

func (s *Store) ListActiveWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	return s.filterWorkflows(func(w domain.Workflow) bool { return w.IsActive }), nil
}

func (s *Store) filterWorkflows(keep func(domain.Workflow) bool) []domain.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := []domain.Workflow{}
	for _, workflow := range s.workflows {
		if keep(workflow) {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt) ||
			(workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) && workflows[i].ID < workflows[j].ID)
	})

	return workflows
}

func (s *Store) UpdateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[workflow.ID]; !ok {
		return domain.NewNotFoundError("workflow", workflow.ID)
	}

	s.workflows[workflow.ID] = workflow

	return nil
}

func (s *Store) SetWorkflowActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	return s.mutateWorkflow(id, func(w *domain.Workflow) {
		w.IsActive = active
		w.UpdatedAt = updatedAt
	})
}

func (s *Store) SetWorkflowLastRun(ctx context.Context, id string, lastRunAt time.Time) error {
	return s.mutateWorkflow(id, func(w *domain.Workflow) {
		w.LastRunAt = &lastRunAt
	})
}

func (s *Store) mutateWorkflow(id string, mutate func(*domain.Workflow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	workflow, ok := s.workflows[id]
	if !ok {
		return domain.NewNotFoundError("workflow", id)
	}

	mutate(&workflow)
	s.workflows[id] = workflow

	return nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return domain.NewNotFoundError("workflow", id)
	}

	delete(s.workflows, id)

	return nil
}

func (s *Store) CreateCredential(ctx context.Context, credential domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if credential.PollingState == nil {
		credential.PollingState = domain.PollingState{}
	}

	s.credentials[credential.ID] = credential

	return nil
}

func (s *Store) GetCredential(ctx context.Context, id string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[id]
	if !ok {
		return domain.Credential{}, domain.NewNotFoundError("credential", id)
	}

	return copyCredential(credential), nil
}

func (s *Store) GetCredentialsByIDs(ctx context.Context, ids []string) ([]domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credentials := []domain.Credential{}
	for _, id := range ids {
		if credential, ok := s.credentials[id]; ok {
			credentials = append(credentials, copyCredential(credential))
		}
	}

	return credentials, nil
}

func (s *Store) ListCredentialsByOwners(ctx context.Context, provider domain.IntegrationType, ownerIDs []string) ([]domain.Credential, error) {
	owners := map[string]struct{}{}
	for _, ownerID := range ownerIDs {
		owners[ownerID] = struct{}{}
	}

	return s.filterCredentials(func(c domain.Credential) bool {
		_, ok := owners[c.OwnerID]
		return ok && c.Provider == provider
	}), nil
}

func (s *Store) ListCredentialsByAccount(ctx context.Context, provider domain.IntegrationType, accountID string) ([]domain.Credential, error) {
	return s.filterCredentials(func(c domain.Credential) bool {
		return c.Provider == provider && strings.EqualFold(c.AccountID, accountID)
	}), nil
}

func (s *Store) filterCredentials(keep func(domain.Credential) bool) []domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credentials := []domain.Credential{}
	for _, credential := range s.credentials {
		if keep(credential) {
			credentials = append(credentials, copyCredential(credential))
		}
	}

	sort.Slice(credentials, func(i, j int) bool { return credentials[i].ID < credentials[j].ID })

	return credentials
}

func (s *Store) UpdateCredentialTokens(ctx context.Context, id string, update domain.TokenUpdate) error {
	return s.mutateCredential(id, func(c *domain.Credential) error {
		c.AccessToken = update.AccessToken
		if update.RefreshToken != "" {
			c.RefreshToken = update.RefreshToken
		}
		c.ExpiresAt = update.ExpiresAt
		c.IsValid = true
		c.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Store) UpdatePollingState(ctx context.Context, id string, state domain.PollingState) error {
	return s.mutateCredential(id, func(c *domain.Credential) error {
		if s.FailPollingStateWrites {
			return ErrWriteFailed
		}

		c.PollingState = c.PollingState.Merge(state)
		return nil
	})
}

func (s *Store) MarkCredentialInvalid(ctx context.Context, id string) error {
	return s.mutateCredential(id, func(c *domain.Credential) error {
		c.IsValid = false
		return nil
	})
}

func (s *Store) mutateCredential(id string, mutate func(*domain.Credential) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.credentials[id]
	if !ok {
		return domain.NewNotFoundError("credential", id)
	}

	if err := mutate(&credential); err != nil {
		return err
	}

	s.credentials[id] = credential

	return nil
}

func copyCredential(credential domain.Credential) domain.Credential {
	credential.PollingState = domain.PollingState{}.Merge(credential.PollingState)
	return credential
}

func (s *Store) CreateExecution(ctx context.Context, execution domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[execution.ID] = execution

	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	execution, ok := s.executions[id]
	if !ok {
		return domain.Execution{}, domain.NewNotFoundError("execution", id)
	}

	return execution, nil
}

func (s *Store) GetExecutionByRunID(ctx context.Context, durableRunID string) (domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, execution := range s.executions {
		if execution.DurableRunID == durableRunID {
			return execution, nil
		}
	}

	return domain.Execution{}, domain.NewNotFoundError("execution", durableRunID)
}

func (s *Store) GetExecutionByCorrelation(ctx context.Context, runID string) (domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, execution := range s.executions {
		if execution.DurableRunCorrelation == runID {
			return execution, nil
		}
	}

	return domain.Execution{}, domain.NewNotFoundError("execution", runID)
}

func (s *Store) SetExecutionRunID(ctx context.Context, id, durableRunID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[id]
	if !ok {
		return domain.NewNotFoundError("execution", id)
	}

	execution.DurableRunID = durableRunID
	s.executions[id] = execution

	return nil
}

func (s *Store) ListExecutionsByWorkflow(ctx context.Context, workflowID string, limit int) ([]domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	executions := []domain.Execution{}
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool { return executions[i].StartedAt.After(executions[j].StartedAt) })

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (s *Store) UpdateExecutionStatus(ctx context.Context, id string, status domain.ExecutionStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, ok := s.executions[id]
	if !ok {
		return domain.NewNotFoundError("execution", id)
	}

	execution.Status = status
	execution.CompletedAt = completedAt
	s.executions[id] = execution

	return nil
}
