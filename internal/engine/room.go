package engine

import (
	"sort"
	"sync"
	"time"
)

// Status is the room lifecycle state. Transitions only move forward; the
// only way back to waiting is recreating the room.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Room is the single live event instance. All participants and connections
// hang off this one record, and every invariant-bearing mutation goes
// through Store.Update.
type Room struct {
	ID     string
	Name   string
	Status Status

	Participants map[string]*Participant
	Connections  []*Connection

	// Deadline is the optional timer end-instant; zero means no timer.
	Deadline time.Time

	CreatedAt time.Time
	joinSeq   int
}

func newRoom(id, name string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		Status:       StatusWaiting,
		Participants: make(map[string]*Participant),
		CreatedAt:    now,
	}
}

// activePartners returns the partner ids that still resolve to a live
// participant. A dangling reference left by a removal race reads as
// unmatched rather than crashing anything downstream.
func (r *Room) activePartners(p *Participant) []string {
	var out []string
	for _, id := range p.Partners {
		if _, ok := r.Participants[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// eligible reports whether p can be fed to the partitioner: online, full
// profile, and not currently in a live match.
func (r *Room) eligible(p *Participant) bool {
	return p.Online && p.ProfileComplete() && len(r.activePartners(p)) == 0
}

// byJoinOrder returns all participants in join order.
func (r *Room) byJoinOrder() []*Participant {
	out := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Leaderboard returns all participants sorted by descending score. Ties
// keep join order.
func (r *Room) Leaderboard() []*Participant {
	out := r.byJoinOrder()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (r *Room) connectionByID(id string) *Connection {
	for _, c := range r.Connections {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *Room) clone() *Room {
	n := *r
	n.Participants = make(map[string]*Participant, len(r.Participants))
	for id, p := range r.Participants {
		n.Participants[id] = p.clone()
	}
	n.Connections = make([]*Connection, len(r.Connections))
	for i, c := range r.Connections {
		n.Connections[i] = c.clone()
	}
	return &n
}

// Store guards the shared Room record. Update runs a whole
// read-compute-write sequence under one lock, so concurrent commands from
// independent clients serialize into atomic all-or-nothing transactions:
// a transaction either commits (and bumps the version) or returns an error
// having written nothing observable.
type Store struct {
	mu      sync.Mutex
	room    *Room
	version uint64
	changed chan struct{}
}

func NewStore() *Store {
	return &Store{changed: make(chan struct{}, 1)}
}

// Update applies fn to the live room inside the transaction boundary.
// Returns ErrNoRoom when no room exists yet. If fn returns an error the
// room is left untouched.
func (s *Store) Update(fn func(*Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return ErrNoRoom
	}

	// fn mutates a scratch copy; a failed transaction must not leak
	// partial writes to readers.
	scratch := s.room.clone()
	if err := fn(scratch); err != nil {
		return err
	}
	s.room = scratch
	s.bumpLocked()
	return nil
}

// Replace installs a new room wholesale, discarding all prior state.
func (s *Store) Replace(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room = room
	s.bumpLocked()
}

// Snapshot returns a deep copy of the current room, or nil when none is
// open. Readers never observe a half-applied transaction.
func (s *Store) Snapshot() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return nil
	}
	return s.room.clone()
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Changes delivers a coalesced signal after each committed transaction.
func (s *Store) Changes() <-chan struct{} {
	return s.changed
}

func (s *Store) bumpLocked() {
	s.version++
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
