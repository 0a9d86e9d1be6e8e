package engine

import (
	"strings"
	"time"
)

// SubmitTraits records one member's discovered commonalities for their
// current match-group and reconciles them into the group's single
// Connection record.
//
// The whole merge runs as one Store transaction, so two members of the
// same group submitting at the same instant both land: neither overwrites
// the other's entry and no score is dropped or applied twice. Repeating a
// submission is safe; the submitted-by guard makes it a no-op for scoring.
//
// Returns true once every member of the group has submitted, at which
// point the connection is finalized, each member's met history absorbs the
// group, and the match is cleared so the members flow back into the pool.
func (e *Engine) SubmitTraits(submitterID string, traits []string) (bool, error) {
	if len(traits) != SessionTraitCount {
		return false, ErrValidation
	}
	trimmed := make([]string, len(traits))
	for i, t := range traits {
		t = strings.TrimSpace(t)
		if t == "" {
			return false, ErrValidation
		}
		trimmed[i] = t
	}

	finalized := false
	err := e.store.Update(func(room *Room) error {
		submitter, ok := room.Participants[submitterID]
		if !ok {
			return ErrNotFound
		}

		partnerIDs := room.activePartners(submitter)
		if len(partnerIDs) == 0 {
			return ErrNotMatched
		}

		members := []*Participant{submitter}
		for _, id := range partnerIDs {
			members = append(members, room.Participants[id])
		}

		memberIDs := make([]string, len(members))
		for i, m := range members {
			memberIDs[i] = m.ID
		}

		conn := room.connectionByID(ConnectionID(memberIDs))
		if conn == nil {
			conn = newConnection(memberIDs, sharedTags(members), time.Now())
			room.Connections = append(room.Connections, conn)
		}

		if !conn.HasSubmitted(submitterID) {
			conn.SubmittedBy = append(conn.SubmittedBy, submitterID)
			conn.IndividualTraits[submitterID] = append([]string(nil), trimmed...)
			conn.addTraits(trimmed)

			delta := TraitPoints(len(trimmed), conn.GroupSize)
			for _, m := range members {
				m.Score += delta
			}
		}

		if conn.Finalized() {
			finalized = true
			finalizeGroup(room, conn)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return finalized, nil
}

// finalizeGroup absorbs the group into everyone's met history and clears
// the match so each member reads as unmatched again. Idempotent: re-running
// it for an already-cleared group changes nothing.
func finalizeGroup(room *Room, conn *Connection) {
	for _, id := range conn.MemberIDs {
		m, ok := room.Participants[id]
		if !ok {
			continue
		}
		for _, other := range conn.MemberIDs {
			if other != id {
				m.Met[other] = true
			}
		}
		m.Partners = nil
	}
}
