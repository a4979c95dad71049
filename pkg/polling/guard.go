package polling

import "sync"

// credentialGuard is the in-progress marker set serializing passes per credential.
type credentialGuard struct {
	mu         sync.Mutex
	inProgress map[string]struct{}
}

func newCredentialGuard() *credentialGuard {
	return &credentialGuard{inProgress: make(map[string]struct{})}
}

func (g *credentialGuard) TryAcquire(credentialID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inProgress[credentialID]; busy {
		return false
	}

	g.inProgress[credentialID] = struct{}{}

	return true
}

func (g *credentialGuard) Release(credentialID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inProgress, credentialID)
}
