package domain

// Friend is an owner-scoped tracking entry. When the tracked person is
// registered (FriendUserID != 0) the edge is part of the mutual-follow
// relation and the subject's own profile birthdate applies; otherwise
// the owner-supplied birthdate below is authoritative and the edge is
// visible to this owner only.
type Friend struct {
	OwnerID      int64
	FriendUserID int64
	FriendName   string
	Birthday     Birthday
}

// Unregistered reports whether this is a private contact entry.
func (f *Friend) Unregistered() bool {
	return f.FriendUserID == 0
}
