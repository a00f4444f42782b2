/*
Package user defines the identity a relay connection is bound to.
*/
package user

// ModeratorKeySuffix distinguishes a user's moderator slot from their plain slot.
const ModeratorKeySuffix = "_mod"

// Identity is who a connection speaks for and in which role.
type Identity struct {
	// ID is the CompanySync user id.
	ID string `json:"userId"`

	// Moderator is true when the connection occupies the moderator slot.
	Moderator bool `json:"moderator"`
}

// Key returns the registry key of the identity.
func (i Identity) Key() string {
	if i.Moderator {
		return ModeratorKey(i.ID)
	}
	return PlainKey(i.ID)
}

// PlainKey is the registry key of a user's plain slot.
func PlainKey(id string) string {
	return id
}

// ModeratorKey is the registry key of a user's moderator slot.
func ModeratorKey(id string) string {
	return id + ModeratorKeySuffix
}
