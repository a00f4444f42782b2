package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a CompanySync session token as consumed by the relay.
type Payload struct {
	jwt.StandardClaims

	// ID is the user id the session belongs to.
	ID string `json:"id"`

	// Moderator marks sessions allowed to take the support moderator slot.
	Moderator bool `json:"moderator,omitempty"`
}
