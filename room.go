package main

import (
	"errors"
	"time"

	"github.com/hansolcho/linkring/internal/engine"
)

// Messages coming from clients
type ClientMessage struct {
	Type        string   `json:"type"`                  // "auth", "create_room", "join", "profile", "submit_traits", "manual_connect", "admin"
	Password    string   `json:"password,omitempty"`    // auth
	RoomName    string   `json:"room_name,omitempty"`   // create_room / join
	Name        string   `json:"name,omitempty"`        // join
	Affiliation string   `json:"affiliation,omitempty"` // join
	Tags        []string `json:"tags,omitempty"`        // profile
	Traits      []string `json:"traits,omitempty"`      // submit_traits
	Command     string   `json:"command,omitempty"`     // admin: "start", "complete", "remove", "reset"
	Minutes     int      `json:"minutes,omitempty"`     // admin start
	TargetID    string   `json:"target_id,omitempty"`   // admin remove
	TargetIDs   []string `json:"target_ids,omitempty"`  // manual_connect: one or two partners
}

// SessionInfoMessage is sent on connect and after join/auth so the client
// knows who this cookie is and what it may do.
type SessionInfoMessage struct {
	Type          string `json:"type"` // "session_info"
	ParticipantID string `json:"participant_id,omitempty"`
	Facilitator   bool   `json:"facilitator"`
	RoomOpen      bool   `json:"room_open"`
	RoomName      string `json:"room_name,omitempty"`
}

// ErrorMessage is sent only to the client whose request was rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NoticeMessage carries one-off events ("match_found", "match_cleared",
// "removed").
type NoticeMessage struct {
	Type    string `json:"type"` // "notice"
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
}

// RoomStateMessage is the full room snapshot broadcast to every client
// after each committed change.
type RoomStateMessage struct {
	Type    string    `json:"type"` // "room_state"
	Version uint64    `json:"version"`
	Room    *RoomView `json:"room,omitempty"`
}

type RoomView struct {
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	EndsAt       *time.Time        `json:"ends_at,omitempty"`
	Participants []ParticipantView `json:"participants"` // leaderboard order
	Connections  []ConnectionView  `json:"connections"`
}

type ParticipantView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Affiliation string   `json:"affiliation"`
	Tags        []string `json:"tags,omitempty"`
	TagCount    int      `json:"tag_count"`
	Ready       bool     `json:"ready"`
	Online      bool     `json:"online"`
	Score       int      `json:"score"`
	PartnerIDs  []string `json:"partner_ids,omitempty"`
	MetCount    int      `json:"met_count"`
}

type ConnectionView struct {
	ID           string              `json:"id"`
	MemberNames  []string            `json:"member_names"`
	GroupSize    int                 `json:"group_size"`
	CommonTraits []string            `json:"common_traits"`
	PerAuthor    map[string][]string `json:"per_author,omitempty"` // author name -> traits
	Complete     bool                `json:"complete"`
	CreatedAt    time.Time           `json:"created_at"`
}

// buildRoomView flattens an engine snapshot for the wire. Participants
// come out in leaderboard order so every client renders the same ranking.
func buildRoomView(room *engine.Room) *RoomView {
	if room == nil {
		return nil
	}

	view := &RoomView{
		Name:         room.Name,
		Status:       string(room.Status),
		Participants: make([]ParticipantView, 0, len(room.Participants)),
		Connections:  make([]ConnectionView, 0, len(room.Connections)),
	}
	if !room.Deadline.IsZero() {
		deadline := room.Deadline
		view.EndsAt = &deadline
	}

	for _, p := range room.Leaderboard() {
		view.Participants = append(view.Participants, ParticipantView{
			ID:          p.ID,
			Name:        p.Name,
			Affiliation: p.Affiliation,
			Tags:        p.Tags,
			TagCount:    len(p.Tags),
			Ready:       p.ProfileComplete(),
			Online:      p.Online,
			Score:       p.Score,
			PartnerIDs:  p.Partners,
			MetCount:    len(p.Met),
		})
	}

	nameOf := func(id string) string {
		if p, ok := room.Participants[id]; ok {
			return p.Name
		}
		return "(left)"
	}

	for _, c := range room.Connections {
		cv := ConnectionView{
			ID:           c.ID,
			GroupSize:    c.GroupSize,
			CommonTraits: c.CommonTraits,
			Complete:     c.Finalized(),
			CreatedAt:    c.CreatedAt,
		}
		for _, id := range c.MemberIDs {
			cv.MemberNames = append(cv.MemberNames, nameOf(id))
		}
		if len(c.IndividualTraits) > 0 {
			cv.PerAuthor = make(map[string][]string, len(c.IndividualTraits))
			for id, traits := range c.IndividualTraits {
				cv.PerAuthor[nameOf(id)] = traits
			}
		}
		view.Connections = append(view.Connections, cv)
	}

	return view
}

// errorCode maps engine sentinels to stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoRoom):
		return "no_room"
	case errors.Is(err, engine.ErrRoomMismatch):
		return "room_mismatch"
	case errors.Is(err, engine.ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, engine.ErrNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrBadStatus):
		return "bad_status"
	case errors.Is(err, engine.ErrProfileIncomplete):
		return "profile_incomplete"
	case errors.Is(err, engine.ErrNotMatched):
		return "not_matched"
	case errors.Is(err, engine.ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, engine.ErrValidation):
		return "invalid"
	default:
		return "internal"
	}
}
