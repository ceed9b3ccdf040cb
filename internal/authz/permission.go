package authz

import (
	"fmt"
	"sort"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
)

// Permission is a member of the closed set of capabilities the service knows about.
type Permission string

const (
	ViewUsers         Permission = "view-users"
	CreateUsers       Permission = "create-users"
	UpdateUsers       Permission = "update-users"
	DeleteUsers       Permission = "delete-users"
	InactivateUsers   Permission = "inactivate-users"
	ActivateUsers     Permission = "activate-users"
	GrantPermissions  Permission = "grant-permissions"
	RevokePermissions Permission = "revoke-permissions"
)

var allPermissions = []Permission{
	ViewUsers,
	CreateUsers,
	UpdateUsers,
	DeleteUsers,
	InactivateUsers,
	ActivateUsers,
	GrantPermissions,
	RevokePermissions,
}

func All() []Permission {
	return append([]Permission(nil), allPermissions...)
}

func (p Permission) String() string {
	return string(p)
}

func (p Permission) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// Parse rejects any name outside the enumeration.
func Parse(name string) (Permission, error) {
	p := Permission(name)
	if !p.Valid() {
		return "", internal.NewValidationFieldError("permissions", fmt.Sprintf("unknown permission %q", name), internal.ErrCodeUnknownPerm)
	}
	return p, nil
}

type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// ParseSet builds a Set from user input and fails on the first unknown name.
func ParseSet(names []string) (Set, error) {
	s := make(Set, len(names))
	for _, name := range names {
		p, err := Parse(name)
		if err != nil {
			return nil, err
		}
		s[p] = struct{}{}
	}
	return s, nil
}

// FromNames builds a Set from trusted storage or token claims, dropping names it does not know.
func FromNames(names []string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		if p := Permission(name); p.Valid() {
			s[p] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s Set) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Diff returns the permissions in s that are not in other.
func (s Set) Diff(other Set) Set {
	out := make(Set)
	for p := range s {
		if !other.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Names returns the members sorted, for stable claims and responses.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for p := range s {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
