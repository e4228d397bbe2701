// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen = 64
	MaxEmailLen    = 254
)

// identityNamespace scopes identity ids derived from e-mail addresses.
var identityNamespace = uuid.MustParse("0b8f6f7e-5a54-4d2e-9a0c-3c1f3e6d9b21")

type UserID string

// Identity is the verified, stable user behind a connection.
type Identity struct {
	ID      UserID `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
// The id is derived from the e-mail so the same person keeps it across logins.
func NewIdentity(name, email string) (Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return Identity{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > MaxUsernameLen {
		return Identity{}, fmt.Errorf("%w: name too long", ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(email) > MaxEmailLen {
		return Identity{}, fmt.Errorf("%w: email too long", ErrValidation)
	}
	return Identity{
		ID:      UserID(uuid.NewSHA1(identityNamespace, []byte(email)).String()),
		Name:    name,
		Email:   email,
		Picture: DefaultPicture(name),
	}, nil
}

// DefaultPicture returns a generated avatar URL for name.
func DefaultPicture(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=3B82F6&color=fff"
}

// SameUser reports whether both identities are the same person.
// Display names are not unique, so only the id is compared.
func (i Identity) SameUser(other Identity) bool {
	return i.ID != "" && i.ID == other.ID
}
