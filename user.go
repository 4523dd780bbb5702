package session

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

// User is the authenticated principal as reported by the login response.
type User struct {
	ID               string   `json:"id"`
	OrgID            string   `json:"orgId"`
	PartyID          string   `json:"partyId,omitempty"`
	ActiveStatus     string   `json:"activeStatus,omitempty"`
	PermittedModules []string `json:"permittedModules,omitempty"`
}

// Validate checks the fields the session core depends on. PartyID and
// ActiveStatus are display-only and may be absent.
func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.OrgID, validation.Required),
		validation.Field(&u.PermittedModules, validation.By(validModuleNames)),
	)
}

// HasModule reports whether the user is entitled to the named module.
func (u User) HasModule(name string) bool {
	for _, m := range u.PermittedModules {
		if m == name {
			return true
		}
	}
	return false
}

func (u User) clone() *User {
	clone := u
	if u.PermittedModules != nil {
		clone.PermittedModules = make([]string, len(u.PermittedModules))
		copy(clone.PermittedModules, u.PermittedModules)
	}
	return &clone
}

func validModuleNames(value any) error {
	modules, ok := value.([]string)
	if !ok {
		return errors.New("must be a list of module names")
	}
	for _, m := range modules {
		if m == "" {
			return errors.New("module names must not be blank")
		}
	}
	return nil
}
