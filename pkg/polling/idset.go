package polling

// UnseenOldestFirst returns the items of a newest-first snapshot whose ids are
// not in known, reordered oldest first.
func UnseenOldestFirst[T any](known []string, newestFirst []T, id func(T) string) []T {
	seen := make(map[string]struct{}, len(known))
	for _, k := range known {
		seen[k] = struct{}{}
	}

	fresh := []T{}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if _, ok := seen[id(newestFirst[i])]; !ok {
			fresh = append(fresh, newestFirst[i])
		}
	}

	return fresh
}

// RecentIDs returns up to limit ids of a newest-first snapshot, leaving out
// pending items so they are reported again on the next pass.
func RecentIDs[T any](newestFirst []T, id func(T) string, pending []T, limit int) []string {
	skip := make(map[string]struct{}, len(pending))
	for _, item := range pending {
		skip[id(item)] = struct{}{}
	}

	ids := []string{}
	for _, item := range newestFirst {
		if len(ids) == limit {
			break
		}

		itemID := id(item)
		if _, ok := skip[itemID]; ok {
			continue
		}

		ids = append(ids, itemID)
	}

	return ids
}
