package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrForbidden is matched by errors a store returns when the acting user may
// not read a match.
var ErrForbidden = errors.New("forbidden")

const (
	MatchPending  = "pending"
	MatchAccepted = "accepted"
)

// Match pairs two users. User1ID < User2ID in canonical string order.
type Match struct {
	ID          uuid.UUID `json:"id"`
	User1ID     uuid.UUID `json:"user1_id"`
	User2ID     uuid.UUID `json:"user2_id"`
	InitiatorID uuid.UUID `json:"initiator_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchDetail is a match joined with both participants' profiles.
type MatchDetail struct {
	Match
	User1 Profile `json:"user1"`
	User2 Profile `json:"user2"`
}

func (m *Match) Accepted() bool {
	return m.Status == MatchAccepted
}

func (m *Match) HasParticipant(userID uuid.UUID) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Other returns the participant that is not userID.
func (m *Match) Other(userID uuid.UUID) uuid.UUID {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// OtherProfile returns the profile of the participant that is not userID.
func (d *MatchDetail) OtherProfile(userID uuid.UUID) Profile {
	if d.User1ID == userID {
		return d.User2
	}
	return d.User1
}

// CanonicalPair orders two user IDs the way matches are stored.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// Topic is the realtime channel name scoped to a single match.
func Topic(matchID uuid.UUID) string {
	return "match:" + matchID.String()
}
