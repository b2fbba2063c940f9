package auth

import (
	"slices"
	"strings"
)

// Rules grants actions to roles. A role entry of the form role@context only grants the
// action inside that security context.
type Rules struct {
	permissions map[string][]string
}

func NewRules(permissions map[string][]string) *Rules {
	return &Rules{permissions: permissions}
}

func (r *Rules) HasRole(token *Token, role string) bool {
	switch role {
	case RoleGuest:
		return true
	case RoleUser:
		return token != nil
	}
	return token != nil && slices.Contains(token.Roles, role)
}

func splitRole(entry string) (role, context string) {
	role, context, _ = strings.Cut(entry, "@")
	return role, context
}

// HasPermission reports whether the token may run action. A non-empty context must be one
// of the token's contexts unless the action is granted to guests.
func (r *Rules) HasPermission(token *Token, context, action string) bool {
	for _, entry := range r.permissions[action] {
		role, scope := splitRole(entry)
		if scope != "" && scope != context {
			continue
		}
		if !r.HasRole(token, role) {
			continue
		}
		if context == "" || role == RoleGuest || slices.Contains(token.Contexts, context) {
			return true
		}
	}
	return false
}

// HasPotentialPermission reports whether the token may run action in at least one
// context, scoped grants included.
func (r *Rules) HasPotentialPermission(token *Token, action string) bool {
	for _, entry := range r.permissions[action] {
		role, scope := splitRole(entry)
		if !r.HasRole(token, role) {
			continue
		}
		if scope == "" || role == RoleGuest || slices.Contains(token.Contexts, scope) {
			return true
		}
	}
	return false
}
