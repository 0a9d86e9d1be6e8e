package engine

import "time"

const (
	// ProfileTagCount is the number of self-descriptive tags a participant
	// must provide before they are eligible for matching.
	ProfileTagCount = 10

	// SessionTraitCount is the number of commonalities each member records
	// during one conversation session.
	SessionTraitCount = 3
)

// Participant is one joined attendee of the room.
type Participant struct {
	ID          string
	Name        string
	Affiliation string

	// Tags is the participant's self-descriptive profile. Incomplete until
	// it holds exactly ProfileTagCount non-empty entries.
	Tags []string

	Online bool
	Score  int

	// Met records everyone this participant has ever completed a
	// connection with. It only ever grows.
	Met map[string]bool

	// Partners holds the ids of the other members of the current
	// match-group: empty when unmatched, one id for a pair, two for a
	// triple. A pair pointer and a triple list can never coexist.
	Partners []string

	JoinedAt time.Time
	seq      int // join order, for stable tie-breaks
}

// ProfileComplete reports whether all ProfileTagCount tags are filled in.
func (p *Participant) ProfileComplete() bool {
	if len(p.Tags) != ProfileTagCount {
		return false
	}
	for _, t := range p.Tags {
		if t == "" {
			return false
		}
	}
	return true
}

// GroupSize returns the size of the participant's current match-group,
// or zero when unmatched.
func (p *Participant) GroupSize() int {
	if len(p.Partners) == 0 {
		return 0
	}
	return len(p.Partners) + 1
}

func (p *Participant) clone() *Participant {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Partners = append([]string(nil), p.Partners...)
	c.Met = make(map[string]bool, len(p.Met))
	for id := range p.Met {
		c.Met[id] = true
	}
	return &c
}
