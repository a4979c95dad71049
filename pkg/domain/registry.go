package domain

import (
	"sort"
	"sync"
)

type describable interface {
	Descriptor() Descriptor
}

type capabilityRegistry[T describable] struct {
	kind  CapabilityKind
	mu    sync.RWMutex
	byKey map[string]T
}

func newCapabilityRegistry[T describable](kind CapabilityKind) *capabilityRegistry[T] {
	return &capabilityRegistry[T]{
		kind:  kind,
		byKey: make(map[string]T),
	}
}

// Register stores the capability under "<provider>:<id>". Last write wins.
func (r *capabilityRegistry[T]) Register(capability T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byKey[capability.Descriptor().Key()] = capability
}

func (r *capabilityRegistry[T]) Unregister(provider IntegrationType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byKey, CapabilityKey(provider, id))
}

func (r *capabilityRegistry[T]) Get(provider IntegrationType, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := CapabilityKey(provider, id)

	capability, ok := r.byKey[key]
	if !ok {
		var zero T
		return zero, NewNotFoundError(string(r.kind), key)
	}

	return capability, nil
}

func (r *capabilityRegistry[T]) GetByProvider(provider IntegrationType) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capabilities := []T{}
	for _, key := range r.sortedKeys() {
		capability := r.byKey[key]

		if capability.Descriptor().Provider == provider {
			capabilities = append(capabilities, capability)
		}
	}

	return capabilities
}

func (r *capabilityRegistry[T]) GetAllMetadata() []DescriptorView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]DescriptorView, 0, len(r.byKey))
	for _, key := range r.sortedKeys() {
		views = append(views, NewDescriptorView(r.kind, r.byKey[key].Descriptor()))
	}

	return views
}

func (r *capabilityRegistry[T]) sortedKeys() []string {
	keys := make([]string, 0, len(r.byKey))
	for key := range r.byKey {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

type TriggerRegistry struct {
	*capabilityRegistry[Trigger]
}

func NewTriggerRegistry() *TriggerRegistry {
	return &TriggerRegistry{capabilityRegistry: newCapabilityRegistry[Trigger](CapabilityKind_Trigger)}
}

type ActionRegistry struct {
	*capabilityRegistry[Action]
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{capabilityRegistry: newCapabilityRegistry[Action](CapabilityKind_Action)}
}
