package engine

import (
	"slices"
	"strings"
	"time"
)

// Connection is the persisted record of one match-group's discovered
// commonalities. It is created lazily on the group's first trait submission
// and only ever grows; the member set never changes after creation.
type Connection struct {
	ID        string
	MemberIDs []string // sorted
	GroupSize int

	// CommonTraits is the deduplicated union of the auto-discovered
	// profile overlap and every member's submitted traits.
	CommonTraits []string

	// IndividualTraits preserves each submitter's own report, keyed by
	// submitter id, so exports can show who found what.
	IndividualTraits map[string][]string

	// SubmittedBy lists the members who have contributed so far. Always a
	// subset of MemberIDs.
	SubmittedBy []string

	CreatedAt time.Time
}

// ConnectionID derives the stable record id for a match-group. Any ordering
// of the same member ids resolves to the same id.
func ConnectionID(memberIDs []string) string {
	sorted := append([]string(nil), memberIDs...)
	slices.Sort(sorted)
	return strings.Join(sorted, "+")
}

func newConnection(memberIDs []string, seedTraits []string, now time.Time) *Connection {
	sorted := append([]string(nil), memberIDs...)
	slices.Sort(sorted)
	return &Connection{
		ID:               ConnectionID(sorted),
		MemberIDs:        sorted,
		GroupSize:        len(sorted),
		CommonTraits:     append([]string(nil), seedTraits...),
		IndividualTraits: make(map[string][]string),
		CreatedAt:        now,
	}
}

// HasSubmitted reports whether the given member has already contributed.
func (c *Connection) HasSubmitted(id string) bool {
	return slices.Contains(c.SubmittedBy, id)
}

// Finalized reports whether every member of the group has submitted.
func (c *Connection) Finalized() bool {
	return len(c.SubmittedBy) >= c.GroupSize
}

func (c *Connection) addTraits(traits []string) {
	for _, t := range traits {
		if !slices.Contains(c.CommonTraits, t) {
			c.CommonTraits = append(c.CommonTraits, t)
		}
	}
}

func (c *Connection) clone() *Connection {
	n := *c
	n.MemberIDs = append([]string(nil), c.MemberIDs...)
	n.CommonTraits = append([]string(nil), c.CommonTraits...)
	n.SubmittedBy = append([]string(nil), c.SubmittedBy...)
	n.IndividualTraits = make(map[string][]string, len(c.IndividualTraits))
	for id, traits := range c.IndividualTraits {
		n.IndividualTraits[id] = append([]string(nil), traits...)
	}
	return &n
}

// sharedTags computes the traits already present in every member's profile,
// in the first member's tag order. These seed a new Connection so the pair
// starts out credited with what their profiles overlap on.
func sharedTags(members []*Participant) []string {
	if len(members) == 0 {
		return nil
	}
	var shared []string
	for _, tag := range members[0].Tags {
		if tag == "" || slices.Contains(shared, tag) {
			continue
		}
		common := true
		for _, m := range members[1:] {
			if !slices.Contains(m.Tags, tag) {
				common = false
				break
			}
		}
		if common {
			shared = append(shared, tag)
		}
	}
	return shared
}
