package engine

import "slices"

// partition splits ids into disjoint groups of two or three. ids are
// assumed pre-shuffled; selection is first-fit in that order, which keeps
// matching fair-by-randomness rather than globally optimal (a deliberate
// tradeoff, not a defect).
//
// Policy:
//   - fewer than two ids: no groups.
//   - odd pool: exactly one triple is formed first, preferring the first
//     triple whose members are pairwise unmet, falling back to the first
//     three ids when no fresh triple exists.
//   - the remaining even pool is paired greedily against unmet candidates;
//     whoever cannot find a fresh partner is paired off in order anyway,
//     so repeats happen only when history leaves no alternative and nobody
//     is left stranded.
func partition(ids []string, met func(a, b string) bool) [][]string {
	if len(ids) < 2 {
		return nil
	}

	var groups [][]string

	rest := append([]string(nil), ids...)
	if len(rest)%2 != 0 {
		triple := freshTriple(rest, met)
		if triple == nil {
			triple = append([]string(nil), rest[:3]...)
		}
		groups = append(groups, triple)
		rest = slices.DeleteFunc(rest, func(id string) bool {
			return slices.Contains(triple, id)
		})
	}

	used := make(map[string]bool, len(rest))
	var leftover []string

	for i, a := range rest {
		if used[a] {
			continue
		}
		used[a] = true

		matched := false
		for _, b := range rest[i+1:] {
			if used[b] || met(a, b) {
				continue
			}
			used[b] = true
			groups = append(groups, []string{a, b})
			matched = true
			break
		}
		if !matched {
			leftover = append(leftover, a)
		}
	}

	// Everyone left over has met every other unused candidate; pair them
	// off in order, accepting the repeat encounters. The leftover count is
	// always even here since the pool was.
	for i := 0; i+1 < len(leftover); i += 2 {
		groups = append(groups, []string{leftover[i], leftover[i+1]})
	}

	return groups
}

// freshTriple scans ordered triples (i<j<k) and returns the first whose
// members have never met pairwise, or nil when history rules them all out.
func freshTriple(ids []string, met func(a, b string) bool) []string {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if met(ids[i], ids[j]) {
				continue
			}
			for k := j + 1; k < len(ids); k++ {
				if !met(ids[i], ids[k]) && !met(ids[j], ids[k]) {
					return []string{ids[i], ids[j], ids[k]}
				}
			}
		}
	}
	return nil
}

// matchLocked shuffles the eligible pool, partitions it, and commits the
// resulting groups to the room: every member's partner list is written in
// the same transaction, so readers never observe an asymmetric match.
// Returns the committed groups.
func (e *Engine) matchLocked(room *Room) [][]string {
	var ids []string
	for _, p := range room.byJoinOrder() {
		if room.eligible(p) {
			ids = append(ids, p.ID)
		}
	}

	// The shuffle is the sole source of matching variety; every
	// invocation re-randomizes so repeated passes differ.
	e.rngMu.Lock()
	e.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	e.rngMu.Unlock()

	groups := partition(ids, func(a, b string) bool {
		return room.Participants[a].Met[b]
	})

	for _, group := range groups {
		for _, id := range group {
			var partners []string
			for _, other := range group {
				if other != id {
					partners = append(partners, other)
				}
			}
			room.Participants[id].Partners = partners
		}
	}

	return groups
}
