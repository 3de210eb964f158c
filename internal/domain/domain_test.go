package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWithDividers(t *testing.T) {
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: uuid.New(), CreatedAt: base},
		{ID: uuid.New(), CreatedAt: base.Add(5 * time.Minute)},
		{ID: uuid.New(), CreatedAt: base.Add(35 * time.Minute)},
		{ID: uuid.New(), CreatedAt: base.Add(65 * time.Minute)},
	}

	rows := WithDividers(msgs)

	var dividers []bool
	for _, r := range rows {
		dividers = append(dividers, r.Divider)
	}
	assert.Equal(t, []bool{true, false, true, true}, dividers)
}

func TestCanonicalPair(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	u1, u2 := CanonicalPair(b, a)
	assert.Equal(t, a, u1)
	assert.Equal(t, b, u2)
}

func TestMatchOther(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	d := MatchDetail{
		Match: Match{User1ID: a, User2ID: b},
		User1: Profile{ID: a, DisplayName: "A"},
		User2: Profile{ID: b, DisplayName: "B"},
	}

	assert.Equal(t, b, d.Other(a))
	assert.Equal(t, "A", d.OtherProfile(b).DisplayName)
	assert.True(t, d.HasParticipant(b))
	assert.False(t, d.HasParticipant(uuid.New()))
}

func TestResolveIdentity(t *testing.T) {
	assert.True(t, ResolveIdentity(nil).IsGuest())
	assert.Equal(t, GuestID, ResolveIdentity(nil).UserID)

	u := &User{ID: uuid.New(), DisplayName: "Ana"}
	id := ResolveIdentity(u)
	assert.False(t, id.IsGuest())
	assert.Equal(t, u.ID, id.UserID)
}
