package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Credential struct {
	ID           string
	OwnerID      string
	Provider     IntegrationType
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	ClientID     string
	ClientSecret string
	IsValid      bool
	PollingState PollingState
	UpdatedAt    time.Time
}

type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// PollingState is the per-credential cursor document, keyed by cursor key.
// Writes merge per key, so independent sub-keys never overwrite each other.
type PollingState map[string]json.RawMessage

func (s PollingState) Decode(key string, v any) (bool, error) {
	raw, ok := s[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode polling state %q: %w", key, err)
	}

	return true, nil
}

func (s PollingState) Encode(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode polling state %q: %w", key, err)
	}

	s[key] = raw

	return nil
}

func (s PollingState) Merge(other PollingState) PollingState {
	merged := make(PollingState, len(s)+len(other))

	for key, value := range s {
		merged[key] = value
	}

	for key, value := range other {
		merged[key] = value
	}

	return merged
}
