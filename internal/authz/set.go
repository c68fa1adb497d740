package authz

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
)

// Set is an immutable permission set. The all-permissions grant is its own
// variant rather than a member string, so it cannot be spelled by accident.
type Set struct {
	all   bool
	perms map[Permission]struct{}
}

func NewSet(perms ...Permission) Set {
	s := Set{perms: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		if p.Valid() {
			s.perms[p] = struct{}{}
		}
	}
	return s
}

// Wildcard returns the set granting every permission.
func Wildcard() Set {
	return Set{all: true}
}

// ParseSet parses directory permission strings. Duplicates and blanks are
// dropped; the literal "all" yields the wildcard; anything else unknown is an
// error.
func ParseSet(values []string) (Set, error) {
	s := Set{perms: make(map[Permission]struct{}, len(values))}
	var errs []error
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, wildcardLiteral) {
			s.all = true
			continue
		}
		p, err := ParsePermission(v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.perms[p] = struct{}{}
	}
	if len(errs) > 0 {
		return Set{}, errors.Join(errs...)
	}
	return s, nil
}

// Has reports whether p is granted. The zero Set grants nothing.
func (s Set) Has(p Permission) bool {
	if s.all {
		return true
	}
	_, ok := s.perms[p]
	return ok
}

// HasAny reports whether at least one of required is granted.
func (s Set) HasAny(required ...Permission) bool {
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of required is granted.
func (s Set) HasAll(required ...Permission) bool {
	for _, p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Set) IsWildcard() bool {
	return s.all
}

func (s Set) IsEmpty() bool {
	return !s.all && len(s.perms) == 0
}

// Union returns a new set holding both grants.
func (s Set) Union(other Set) Set {
	out := Set{
		all:   s.all || other.all,
		perms: make(map[Permission]struct{}, len(s.perms)+len(other.perms)),
	}
	for p := range s.perms {
		out.perms[p] = struct{}{}
	}
	for p := range other.perms {
		out.perms[p] = struct{}{}
	}
	return out
}

// List returns the explicit members sorted. The wildcard is not expanded.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	return sortPermissions(out)
}

// Strings renders the set the way directory rows spell it.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s.perms)+1)
	if s.all {
		out = append(out, wildcardLiteral)
	}
	for _, p := range s.List() {
		out = append(out, string(p))
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	parsed, err := ParseSet(values)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func sortPermissions(perms []Permission) []Permission {
	slices.Sort(perms)
	return perms
}
