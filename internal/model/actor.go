package model

// Role is the privilege class of an actor
type Role string

const (
	RoleAnonymous Role = "ANONYMOUS"
	RoleOwner     Role = "OWNER"
	RoleModerator Role = "MODERATOR"
)

// Actor is the party performing a request. An authenticated actor owns the
// listings they created; a moderator additionally holds staff privileges.
type Actor struct {
	ID            string `json:"id,omitempty"`
	Role          Role   `json:"role"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous returns the unauthenticated actor
func Anonymous() Actor {
	return Actor{Role: RoleAnonymous}
}

// Owner returns an authenticated, non-staff actor
func Owner(id string) Actor {
	return Actor{ID: id, Role: RoleOwner, Authenticated: true}
}

// Moderator returns an authenticated staff actor
func Moderator(id string) Actor {
	return Actor{ID: id, Role: RoleModerator, Authenticated: true}
}

// IsModerator reports whether the actor holds staff privileges
func (a Actor) IsModerator() bool {
	return a.Authenticated && a.Role == RoleModerator
}

// Owns reports whether the actor is the owner of the listing
func (a Actor) Owns(l *Listing) bool {
	return a.Authenticated && a.ID != "" && l != nil && l.OwnerID == a.ID
}
