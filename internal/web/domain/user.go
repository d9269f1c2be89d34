package domain

// User is the identity the provider vouches for. It is mirrored to the
// backend API at sign-in with this exact JSON shape.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// IDTokenClaims are the profile claims read from a Keycloak ID token.
type IDTokenClaims struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Picture           string `json:"picture"`
}

// User maps profile claims to a User, falling back to the username when the
// realm has no display name for the account.
func (c IDTokenClaims) User() User {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return User{
		ID:    c.Subject,
		Name:  name,
		Email: c.Email,
		Image: c.Picture,
	}
}
