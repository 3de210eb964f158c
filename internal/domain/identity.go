package domain

import "github.com/google/uuid"

// GuestID is the fixed identifier used by the guest identity.
var GuestID = uuid.MustParse("00000000-0000-0000-0000-00000000a11c")

// Identity is the acting user of a view. It is either an authenticated user
// or the guest.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	guest       bool
}

func Authenticated(u *User) Identity {
	return Identity{UserID: u.ID, DisplayName: u.DisplayName}
}

func Guest() Identity {
	return Identity{UserID: GuestID, DisplayName: "Guest", guest: true}
}

// ResolveIdentity maps an absent session to the guest identity.
func ResolveIdentity(u *User) Identity {
	if u == nil {
		return Guest()
	}
	return Authenticated(u)
}

func (i Identity) IsGuest() bool {
	return i.guest
}
