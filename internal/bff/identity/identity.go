// Package identity resolves the calling user from request credentials
// and answers permission checks. Resolution is delegated to a session
// store (the upstream auth service in production); this package only
// owns the trust-boundary semantics: absence of identity is a value,
// not an error, and permissions are deny-by-default over a closed set.
package identity

import "sort"

// Source records which credential carried the session.
type Source string

const (
	SourceCookie Source = "cookie"
	SourceBearer Source = "bearer"
)

// The closed set of permission names this service ever checks. Anything
// outside this list does not exist as far as authorization is concerned.
const (
	PermListingsWrite     = "listings:write"
	PermListingsDelete    = "listings:delete"
	PermRestaurantsWrite  = "restaurants:write"
	PermRestaurantsDelete = "restaurants:delete"
	PermUsersRead         = "users:read"
)

var knownPermissions = map[string]struct{}{
	PermListingsWrite:     {},
	PermListingsDelete:    {},
	PermRestaurantsWrite:  {},
	PermRestaurantsDelete: {},
	PermUsersRead:         {},
}

// PermissionSet is an opaque capability set attached to an Identity.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names, silently dropping
// names outside the closed set. A permission the service does not know
// can never be granted, so it can never be checked for either.
func NewPermissionSet(perms ...string) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		if _, ok := knownPermissions[p]; ok {
			s[p] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains perm. Unknown or empty permission
// names are absent: deny-by-default.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Names returns the sorted permission names in the set.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for p := range s {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Identity is the resolved caller. It is read-only data passed by value
// through the request pipeline; this layer never persists it.
type Identity struct {
	ID          string
	Permissions PermissionSet
	Source      Source
}
