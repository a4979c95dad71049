package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowbaker/automations/pkg/domain"
)

// TokenCipher seals credential secrets before they reach the database.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type StoreDependencies struct {
	Pool   *pgxpool.Pool
	Cipher TokenCipher
}

// Store implements domain.Store on PostgreSQL. Each write targets one row.
type Store struct {
	pool   *pgxpool.Pool
	cipher TokenCipher
}

func NewStore(deps StoreDependencies) *Store {
	return &Store{
		pool:   deps.Pool,
		cipher: deps.Cipher,
	}
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return pool, nil
}

const workflowColumns = `id, owner_id, name, slug, description,
	trigger_provider, trigger_id, trigger_config, trigger_credential_id,
	action_provider, action_id, action_config, action_credential_id,
	is_active, last_run_at, created_at, updated_at`

func (s *Store) CreateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	triggerConfig, err := marshalJSON(workflow.Trigger.Config)
	if err != nil {
		return err
	}

	actionConfig, err := marshalJSON(workflow.Action.Config)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12::jsonb, $13, $14, $15, $16, $17)`,
		workflow.ID, workflow.OwnerID, workflow.Name, workflow.Slug, workflow.Description,
		string(workflow.Trigger.Provider), workflow.Trigger.ID, triggerConfig, workflow.Trigger.CredentialID,
		string(workflow.Action.Provider), workflow.Action.ID, actionConfig, workflow.Action.CredentialID,
		workflow.IsActive, workflow.LastRunAt, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Workflow{}, domain.NewNotFoundError("workflow", id)
	}

	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

func (s *Store) GetWorkflowsByIDs(ctx context.Context, ids []string) ([]domain.Workflow, error) {
	return s.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *Store) ListWorkflowsByOwner(ctx context.Context, ownerID string) ([]domain.Workflow, error) {
	return s.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
}

func (s *Store) ListActiveWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	return s.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE is_active ORDER BY created_at, id`)
}

func (s *Store) queryWorkflows(ctx context.Context, query string, args ...any) ([]domain.Workflow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	workflows := []domain.Workflow{}
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read workflows: %w", err)
	}

	return workflows, nil
}

func (s *Store) UpdateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	triggerConfig, err := marshalJSON(workflow.Trigger.Config)
	if err != nil {
		return err
	}

	actionConfig, err := marshalJSON(workflow.Action.Config)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE workflows SET
		name = $2, slug = $3, description = $4,
		trigger_provider = $5, trigger_id = $6, trigger_config = $7::jsonb, trigger_credential_id = $8,
		action_provider = $9, action_id = $10, action_config = $11::jsonb, action_credential_id = $12,
		is_active = $13, last_run_at = $14, updated_at = $15
		WHERE id = $1`,
		workflow.ID, workflow.Name, workflow.Slug, workflow.Description,
		string(workflow.Trigger.Provider), workflow.Trigger.ID, triggerConfig, workflow.Trigger.CredentialID,
		string(workflow.Action.Provider), workflow.Action.ID, actionConfig, workflow.Action.CredentialID,
		workflow.IsActive, workflow.LastRunAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("workflow", workflow.ID)
	}

	return nil
}

func (s *Store) SetWorkflowActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	return s.execOne(ctx, "workflow", id, `UPDATE workflows SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, updatedAt)
}

func (s *Store) SetWorkflowLastRun(ctx context.Context, id string, lastRunAt time.Time) error {
	return s.execOne(ctx, "workflow", id, `UPDATE workflows SET last_run_at = $2 WHERE id = $1`, id, lastRunAt)
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	return s.execOne(ctx, "workflow", id, `DELETE FROM workflows WHERE id = $1`, id)
}

const credentialColumns = `id, owner_id, provider, account_id, access_token, refresh_token,
	expires_at, client_id, client_secret, is_valid, polling_state, updated_at`

func (s *Store) CreateCredential(ctx context.Context, credential domain.Credential) error {
	accessToken, err := s.seal(credential.AccessToken)
	if err != nil {
		return err
	}

	refreshToken, err := s.seal(credential.RefreshToken)
	if err != nil {
		return err
	}

	clientSecret, err := s.seal(credential.ClientSecret)
	if err != nil {
		return err
	}

	pollingState, err := marshalPollingState(credential.PollingState)
	if err != nil {
		return err
	}

	updatedAt := credential.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)`,
		credential.ID, credential.OwnerID, string(credential.Provider), credential.AccountID,
		accessToken, refreshToken, credential.ExpiresAt, credential.ClientID, clientSecret,
		credential.IsValid, pollingState, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	return nil
}

func (s *Store) GetCredential(ctx context.Context, id string) (domain.Credential, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id)

	credential, err := s.scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, domain.NewNotFoundError("credential", id)
	}

	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}

	return credential, nil
}

func (s *Store) GetCredentialsByIDs(ctx context.Context, ids []string) ([]domain.Credential, error) {
	return s.queryCredentials(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *Store) ListCredentialsByOwners(ctx context.Context, provider domain.IntegrationType, ownerIDs []string) ([]domain.Credential, error) {
	return s.queryCredentials(ctx, `SELECT `+credentialColumns+` FROM credentials
		WHERE provider = $1 AND owner_id = ANY($2) ORDER BY id`, string(provider), ownerIDs)
}

func (s *Store) ListCredentialsByAccount(ctx context.Context, provider domain.IntegrationType, accountID string) ([]domain.Credential, error) {
	return s.queryCredentials(ctx, `SELECT `+credentialColumns+` FROM credentials
		WHERE provider = $1 AND lower(account_id) = lower($2) ORDER BY id`, string(provider), accountID)
}

func (s *Store) queryCredentials(ctx context.Context, query string, args ...any) ([]domain.Credential, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	credentials := []domain.Credential{}
	for rows.Next() {
		credential, err := s.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return credentials, nil
}

// UpdateCredentialTokens keeps the stored refresh token when the update
// carries none, as providers often omit it on refresh.
func (s *Store) UpdateCredentialTokens(ctx context.Context, id string, update domain.TokenUpdate) error {
	accessToken, err := s.seal(update.AccessToken)
	if err != nil {
		return err
	}

	refreshToken, err := s.seal(update.RefreshToken)
	if err != nil {
		return err
	}

	return s.execOne(ctx, "credential", id, `UPDATE credentials SET
		access_token = $2,
		refresh_token = CASE WHEN $3::text = '' THEN refresh_token ELSE $3::text END,
		expires_at = $4,
		is_valid = TRUE,
		updated_at = $5
		WHERE id = $1`,
		id, accessToken, refreshToken, update.ExpiresAt, time.Now().UTC(),
	)
}

// UpdatePollingState merges the given keys into the stored document in one
// statement, so concurrent writers of different keys never lose updates.
// updated_at is left alone: it orders credential resolution, which cursor
// writes must not change.
func (s *Store) UpdatePollingState(ctx context.Context, id string, state domain.PollingState) error {
	patch, err := marshalPollingState(state)
	if err != nil {
		return err
	}

	return s.execOne(ctx, "credential", id, `UPDATE credentials SET
		polling_state = polling_state || $2::jsonb
		WHERE id = $1`,
		id, patch,
	)
}

func (s *Store) MarkCredentialInvalid(ctx context.Context, id string) error {
	return s.execOne(ctx, "credential", id, `UPDATE credentials SET is_valid = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
}

const executionColumns = `id, workflow_id, owner_id, durable_run_id, durable_run_correlation,
	status, trigger_data, started_at, completed_at`

func (s *Store) CreateExecution(ctx context.Context, execution domain.Execution) error {
	triggerData, err := marshalJSON(execution.TriggerData)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
		execution.ID, execution.WorkflowID, execution.OwnerID, execution.DurableRunID, execution.DurableRunCorrelation,
		string(execution.Status), triggerData, execution.StartedAt, execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	return s.getExecution(ctx, id, `SELECT `+executionColumns+` FROM executions WHERE id = $1`)
}

func (s *Store) GetExecutionByRunID(ctx context.Context, durableRunID string) (domain.Execution, error) {
	return s.getExecution(ctx, durableRunID, `SELECT `+executionColumns+` FROM executions WHERE durable_run_id = $1 LIMIT 1`)
}

func (s *Store) GetExecutionByCorrelation(ctx context.Context, runID string) (domain.Execution, error) {
	return s.getExecution(ctx, runID, `SELECT `+executionColumns+` FROM executions WHERE durable_run_correlation = $1 LIMIT 1`)
}

func (s *Store) SetExecutionRunID(ctx context.Context, id, durableRunID string) error {
	return s.execOne(ctx, "execution", id, `UPDATE executions SET durable_run_id = $2 WHERE id = $1`, id, durableRunID)
}

func (s *Store) getExecution(ctx context.Context, key, query string) (domain.Execution, error) {
	execution, err := scanExecution(s.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, domain.NewNotFoundError("execution", key)
	}

	if err != nil {
		return domain.Execution{}, fmt.Errorf("failed to get execution: %w", err)
	}

	return execution, nil
}

func (s *Store) ListExecutionsByWorkflow(ctx context.Context, workflowID string, limit int) ([]domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC`
	args := []any{workflowID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := []domain.Execution{}
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read executions: %w", err)
	}

	return executions, nil
}

func (s *Store) UpdateExecutionStatus(ctx context.Context, id string, status domain.ExecutionStatus, completedAt *time.Time) error {
	return s.execOne(ctx, "execution", id, `UPDATE executions SET status = $2, completed_at = $3 WHERE id = $1`, id, string(status), completedAt)
}

func (s *Store) execOne(ctx context.Context, kind, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}

	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError(kind, id)
	}

	return nil
}

func (s *Store) seal(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}

	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential secret: %w", err)
	}

	return sealed, nil
}

func (s *Store) open(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}

	opened, err := s.cipher.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential secret: %w", err)
	}

	return opened, nil
}
