package domain

import "sort"

// CredentialSet indexes one pass worth of loaded credentials. It is rebuilt
// on every pass and never cached across passes.
type CredentialSet struct {
	byID    map[string]Credential
	byOwner map[string][]Credential
}

// NewCredentialSet keeps only valid credentials. Owner lists are sorted by
// UpdatedAt descending, ties broken by ID ascending.
func NewCredentialSet(credentials []Credential) *CredentialSet {
	set := &CredentialSet{
		byID:    make(map[string]Credential),
		byOwner: make(map[string][]Credential),
	}

	for _, credential := range credentials {
		if !credential.IsValid {
			continue
		}

		set.byID[credential.ID] = credential
		set.byOwner[credential.OwnerID] = append(set.byOwner[credential.OwnerID], credential)
	}

	for _, owned := range set.byOwner {
		sort.Slice(owned, func(i, j int) bool {
			if !owned[i].UpdatedAt.Equal(owned[j].UpdatedAt) {
				return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
			}

			return owned[i].ID < owned[j].ID
		})
	}

	return set
}

func (s *CredentialSet) Lookup(id string) (Credential, bool) {
	credential, ok := s.byID[id]
	return credential, ok
}

func (s *CredentialSet) MostRecentlyUpdated(ownerID string) (Credential, bool) {
	owned := s.byOwner[ownerID]
	if len(owned) == 0 {
		return Credential{}, false
	}

	return owned[0], true
}

// Resolve picks the credential backing a workflow owned by ownerID. An
// explicit credentialID is honored only when it belongs to the owner;
// otherwise the owner's most recently updated credential is used. A false
// result means the workflow is skipped for this pass.
func (s *CredentialSet) Resolve(ownerID, credentialID string) (Credential, bool) {
	if credentialID == "" {
		return s.MostRecentlyUpdated(ownerID)
	}

	candidate, ok := s.Lookup(credentialID)
	if !ok {
		return Credential{}, false
	}

	if candidate.OwnerID != ownerID {
		return s.MostRecentlyUpdated(ownerID)
	}

	return candidate, true
}
