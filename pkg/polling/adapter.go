package polling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/rs/zerolog/log"
)

// Target is one registered workflow interested in a check's items.
type Target struct {
	TriggerID  string
	WorkflowID string
	OwnerID    string
	Config     map[string]any
}

// Check is one fetch against the provider, with its own cursor sub-key.
type Check struct {
	CursorKey string
	Params    map[string]string
	Targets   []Target
}

// Adapter supplies the provider-specific half of a poll: what to fetch, how
// to seed and diff the cursor, and which targets an item is dispatched to.
// C is the cursor stored in pollingState, S the fetched snapshot and I a
// dispatchable item.
type Adapter[C any, S any, I any] interface {
	TriggerIDs() []string
	Plan(targets []Target) []Check
	// Fetch receives a nil cursor on first observation.
	Fetch(ctx context.Context, client domain.AuthorizedClient, check Check, cursor *C) (S, error)
	Seed(snapshot S) C
	// Diff returns the items newer than cursor, oldest first.
	Diff(cursor C, snapshot S) []I
	// Advance returns the next cursor. pending holds the new items that were
	// not delivered and must be offered again next tick.
	Advance(cursor C, snapshot S, delivered []I, pending []I) C
	Matches(item I, target Target) bool
	Payload(item I) map[string]any
}

type DispatchFunc func(ctx context.Context, target Target, payload map[string]any) error

// Checker is an Adapter with its types erased so one engine can drive
// adapters with different cursor shapes.
type Checker interface {
	TriggerIDs() []string
	Plan(targets []Target) []Check
	Run(ctx context.Context, client domain.AuthorizedClient, check Check, state domain.PollingState, dispatch DispatchFunc) (domain.PollingState, error)
}

type typedChecker[C any, S any, I any] struct {
	adapter Adapter[C, S, I]
}

func NewChecker[C any, S any, I any](adapter Adapter[C, S, I]) Checker {
	return &typedChecker[C, S, I]{adapter: adapter}
}

func (c *typedChecker[C, S, I]) TriggerIDs() []string {
	return c.adapter.TriggerIDs()
}

func (c *typedChecker[C, S, I]) Plan(targets []Target) []Check {
	return c.adapter.Plan(targets)
}

func (c *typedChecker[C, S, I]) Run(ctx context.Context, client domain.AuthorizedClient, check Check, state domain.PollingState, dispatch DispatchFunc) (domain.PollingState, error) {
	changes := domain.PollingState{}

	var cursor C
	found, err := state.Decode(check.CursorKey, &cursor)
	if err != nil {
		log.Warn().Err(err).Str("cursor_key", check.CursorKey).Msg("Discarding unreadable cursor, reseeding")
		found = false
	}

	var cursorRef *C
	if found {
		cursorRef = &cursor
	}

	snapshot, err := c.adapter.Fetch(ctx, client, check, cursorRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", check.CursorKey, err)
	}

	if !found {
		if err := changes.Encode(check.CursorKey, c.adapter.Seed(snapshot)); err != nil {
			return nil, err
		}

		return changes, nil
	}

	items := c.adapter.Diff(cursor, snapshot)

	delivered := make([]I, 0, len(items))
	pending := items

	for i, item := range items {
		if err := c.dispatchItem(ctx, check, item, dispatch); err != nil {
			log.Error().Err(err).Str("cursor_key", check.CursorKey).Int("pending", len(items)-i).Msg("Failed to dispatch item, will retry next tick")
			break
		}

		delivered = append(delivered, item)
		pending = items[i+1:]
	}

	next := c.adapter.Advance(cursor, snapshot, delivered, pending)

	changed, err := cursorChanged(state[check.CursorKey], next)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := changes.Encode(check.CursorKey, next); err != nil {
			return nil, err
		}
	}

	return changes, nil
}

func (c *typedChecker[C, S, I]) dispatchItem(ctx context.Context, check Check, item I, dispatch DispatchFunc) error {
	payload := c.adapter.Payload(item)

	var failed error

	for _, target := range check.Targets {
		if !c.adapter.Matches(item, target) {
			continue
		}

		err := dispatch(ctx, target, payload)
		if err == nil {
			continue
		}

		if isPermanentDispatchError(err) {
			log.Warn().Err(err).Str("workflow_id", target.WorkflowID).Str("trigger_id", target.TriggerID).Msg("Skipping workflow for dispatched item")
			continue
		}

		failed = errors.Join(failed, fmt.Errorf("workflow %s: %w", target.WorkflowID, err))
	}

	return failed
}

// Permanent errors do not hold the cursor back, retrying would not help.
func isPermanentDispatchError(err error) bool {
	return errors.Is(err, domain.ErrNotActive) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnsupportedAction) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrCredential)
}

func cursorChanged(previous json.RawMessage, next any) (bool, error) {
	raw, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("failed to encode cursor: %w", err)
	}

	return !bytes.Equal(bytes.TrimSpace(previous), raw), nil
}

// SingleCheck plans one fetch shared by every target.
func SingleCheck(cursorKey string, targets []Target) []Check {
	if len(targets) == 0 {
		return nil
	}

	return []Check{{CursorKey: cursorKey, Targets: targets}}
}

// ChecksByConfig plans one fetch per distinct value of configKey, with the
// value appended to the cursor key. Targets without the value are dropped.
func ChecksByConfig(cursorPrefix, configKey string, targets []Target) []Check {
	byValue := map[string][]Target{}

	for _, target := range targets {
		value, _ := target.Config[configKey].(string)
		value = strings.TrimSpace(value)

		if value == "" {
			log.Warn().Str("workflow_id", target.WorkflowID).Str("config_key", configKey).Msg("Registration is missing a required config value")
			continue
		}

		byValue[value] = append(byValue[value], target)
	}

	values := make([]string, 0, len(byValue))
	for value := range byValue {
		values = append(values, value)
	}

	sort.Strings(values)

	checks := make([]Check, 0, len(values))
	for _, value := range values {
		checks = append(checks, Check{
			CursorKey: fmt.Sprintf("%s:%s", cursorPrefix, value),
			Params:    map[string]string{configKey: value},
			Targets:   byValue[value],
		})
	}

	return checks
}
