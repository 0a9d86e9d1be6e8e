// Package engine implements the matchmaking and connection-scoring core of
// the icebreaker event: a transactionally-guarded Room aggregate behind a
// narrow command API. Clients never write fields directly; every
// invariant-bearing mutation is one atomic Store transaction.
package engine

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoRoom            = errors.New("no room is open")
	ErrRoomMismatch      = errors.New("room name does not match the open room")
	ErrRoomClosed        = errors.New("room is no longer accepting joins")
	ErrNotFound          = errors.New("no such participant")
	ErrBadStatus         = errors.New("operation not valid in current room status")
	ErrValidation        = errors.New("invalid input")
	ErrProfileIncomplete = errors.New("profile requires all tags filled in")
	ErrNotMatched        = errors.New("participant is not in a match")
	ErrAlreadyMatched    = errors.New("participant is already in a match")
)

// Engine exposes the room commands. Safe for concurrent use from any
// number of client connections.
type Engine struct {
	store *Store

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns an engine with a time-seeded shuffle source.
func New() *Engine {
	now := uint64(time.Now().UnixNano())
	return NewSeeded(now, now>>32)
}

// NewSeeded returns an engine with a deterministic shuffle source, for
// reproducible matching in tests.
func NewSeeded(seed1, seed2 uint64) *Engine {
	return &Engine{
		store: NewStore(),
		rng:   rand.New(rand.NewSource(int64(seed1) ^ int64(seed2)<<1)),
	}
}

// Snapshot returns a deep copy of the room, or nil when none is open.
func (e *Engine) Snapshot() *Room {
	return e.store.Snapshot()
}

// Version returns the current committed transaction counter.
func (e *Engine) Version() uint64 {
	return e.store.Version()
}

// Changes signals after each committed transaction; used by the broadcast
// loop to push fresh state to clients.
func (e *Engine) Changes() <-chan struct{} {
	return e.store.Changes()
}

// CreateRoom opens a new room, discarding any prior room and all of its
// participants and connections.
func (e *Engine) CreateRoom(name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation
	}

	room := newRoom(uuid.NewString(), name, time.Now())
	e.store.Replace(room)
	return room.clone(), nil
}

// Reset recreates the room under the same name, discarding all state.
func (e *Engine) Reset() (*Room, error) {
	current := e.store.Snapshot()
	if current == nil {
		return nil, ErrNoRoom
	}
	return e.CreateRoom(current.Name)
}

// Join adds a participant. The supplied room name must match the open
// room exactly (after trimming), and the room must still be accepting
// joins.
func (e *Engine) Join(roomName, name, affiliation string) (*Participant, error) {
	roomName = strings.TrimSpace(roomName)
	name = strings.TrimSpace(name)
	affiliation = strings.TrimSpace(affiliation)
	if roomName == "" || name == "" || affiliation == "" {
		return nil, ErrValidation
	}

	var joined *Participant
	err := e.store.Update(func(room *Room) error {
		if strings.TrimSpace(room.Name) != roomName {
			return ErrRoomMismatch
		}
		if room.Status == StatusCompleted {
			return ErrRoomClosed
		}

		room.joinSeq++
		p := &Participant{
			ID:          uuid.NewString(),
			Name:        name,
			Affiliation: affiliation,
			Online:      true,
			Met:         make(map[string]bool),
			JoinedAt:    time.Now(),
			seq:         room.joinSeq,
		}
		room.Participants[p.ID] = p
		joined = p.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// SubmitProfile replaces the participant's tag list wholesale. All
// ProfileTagCount tags must be non-empty.
func (e *Engine) SubmitProfile(id string, tags []string) error {
	if len(tags) != ProfileTagCount {
		return ErrProfileIncomplete
	}
	trimmed := make([]string, len(tags))
	for i, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			return ErrProfileIncomplete
		}
		trimmed[i] = t
	}

	return e.store.Update(func(room *Room) error {
		p, ok := room.Participants[id]
		if !ok {
			return ErrNotFound
		}
		p.Tags = trimmed
		return nil
	})
}

// SetOnline flips a participant's presence flag.
func (e *Engine) SetOnline(id string, online bool) error {
	return e.store.Update(func(room *Room) error {
		p, ok := room.Participants[id]
		if !ok {
			return ErrNotFound
		}
		p.Online = online
		return nil
	})
}

// Start moves the room to running, optionally arms the timer, and runs
// the first matching pass.
func (e *Engine) Start(duration time.Duration) ([][]string, error) {
	var groups [][]string
	err := e.store.Update(func(room *Room) error {
		if room.Status != StatusWaiting {
			return ErrBadStatus
		}
		room.Status = StatusRunning
		if duration > 0 {
			room.Deadline = time.Now().Add(duration)
		}
		groups = e.matchLocked(room)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Complete ends a running room. Completing an already completed room is a
// no-op, so racing timer observers are harmless; a room that never started
// cannot complete (reset or recreate it instead).
func (e *Engine) Complete() error {
	return e.store.Update(func(room *Room) error {
		if room.Status == StatusWaiting {
			return ErrBadStatus
		}
		room.Status = StatusCompleted
		return nil
	})
}

// CheckDeadline forces completion once the configured timer has expired.
// Callers poll this; any number of independent observers may fire it
// concurrently. Returns true when this call performed the transition.
func (e *Engine) CheckDeadline(now time.Time) bool {
	// Cheap read first; the transaction below re-checks, so a racing
	// observer just turns into a no-op.
	snap := e.store.Snapshot()
	if snap == nil || snap.Status != StatusRunning || snap.Deadline.IsZero() || now.Before(snap.Deadline) {
		return false
	}

	completed := false
	_ = e.store.Update(func(room *Room) error {
		if room.Status == StatusRunning && !room.Deadline.IsZero() && !now.Before(room.Deadline) {
			room.Status = StatusCompleted
			completed = true
		}
		return nil
	})
	return completed
}

// Remove deletes a participant. If they were mid-match the whole group is
// disbanded first, so no survivor is left pointing at a missing id or at
// a half-torn group.
func (e *Engine) Remove(id string) error {
	return e.store.Update(func(room *Room) error {
		p, ok := room.Participants[id]
		if !ok {
			return ErrNotFound
		}
		for _, partnerID := range room.activePartners(p) {
			room.Participants[partnerID].Partners = nil
		}
		delete(room.Participants, id)
		return nil
	})
}

// Connect forms a match-group by hand: the initiator picks one or two
// partners and the group starts a conversation outside the automatic
// partitioner. Everyone involved must currently be unmatched; profile
// completeness is not required, so a walk-up can be pulled in directly.
// Returns the member ids, initiator first.
func (e *Engine) Connect(initiatorID string, partnerIDs []string) ([]string, error) {
	if len(partnerIDs) < 1 || len(partnerIDs) > 2 {
		return nil, ErrValidation
	}

	var group []string
	err := e.store.Update(func(room *Room) error {
		if room.Status != StatusRunning {
			return ErrBadStatus
		}

		ids := append([]string{initiatorID}, partnerIDs...)
		seen := make(map[string]bool, len(ids))
		members := make([]*Participant, 0, len(ids))
		for _, id := range ids {
			if seen[id] {
				return ErrValidation
			}
			seen[id] = true
			p, ok := room.Participants[id]
			if !ok {
				return ErrNotFound
			}
			if len(room.activePartners(p)) > 0 {
				return ErrAlreadyMatched
			}
			members = append(members, p)
		}

		for _, m := range members {
			var partners []string
			for _, other := range members {
				if other.ID != m.ID {
					partners = append(partners, other.ID)
				}
			}
			m.Partners = partners
		}
		group = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Rematch runs one partition pass over the currently eligible pool. A
// no-op unless the room is running.
func (e *Engine) Rematch() ([][]string, error) {
	var groups [][]string
	err := e.store.Update(func(room *Room) error {
		if room.Status != StatusRunning {
			return nil
		}
		groups = e.matchLocked(room)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}
