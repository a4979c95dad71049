package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrCredential        = errors.New("credential error")
	ErrExternalProvider  = errors.New("external provider error")
	ErrRegistration      = errors.New("trigger registration failed")
	ErrNotActive         = errors.New("workflow is not active")
	ErrUnsupportedAction = errors.New("unsupported action")
)

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every config field that failed validation.
type ValidationError struct {
	Subject string       `json:"subject"`
	Issues  []FieldIssue `json:"issues"`
}

func NewValidationError(subject string, issues ...FieldIssue) *ValidationError {
	return &ValidationError{Subject: subject, Issues: issues}
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("invalid %s", e.Subject)
	}

	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Field == "" {
			parts = append(parts, issue.Message)
			continue
		}

		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}

	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type InvalidStateError struct {
	WorkflowID string
	Message    string
}

func NewInvalidStateError(workflowID, message string) *InvalidStateError {
	return &InvalidStateError{WorkflowID: workflowID, Message: message}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Message)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

type CredentialError struct {
	CredentialID string
	Err          error
}

func NewCredentialError(credentialID string, err error) *CredentialError {
	return &CredentialError{CredentialID: credentialID, Err: err}
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.CredentialID, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

func (e *CredentialError) Is(target error) bool {
	return target == ErrCredential
}

// ExternalProviderError wraps a failed third-party API call.
type ExternalProviderError struct {
	Provider IntegrationType
	Op       string
	Err      error
}

func NewExternalProviderError(provider IntegrationType, op string, err error) *ExternalProviderError {
	return &ExternalProviderError{Provider: provider, Op: op, Err: err}
}

func (e *ExternalProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalProviderError) Unwrap() error { return e.Err }

func (e *ExternalProviderError) Is(target error) bool {
	return target == ErrExternalProvider
}

type RegistrationError struct {
	Provider   IntegrationType
	TriggerID  string
	WorkflowID string
	Err        error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s:%s for workflow %s: %v", e.Provider, e.TriggerID, e.WorkflowID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistration
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidStateError(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredential)
}
