package affiliation

import "sort"

// SortForSuggestion returns a copy of list in the order a selection UI should
// offer it: admins first, then by role priority, establishment name and id.
// The first element is the advisory default; it is never auto-selected.
func SortForSuggestion(list []Affiliation) []Affiliation {
	out := make([]Affiliation, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsAdmin != b.IsAdmin {
			return a.IsAdmin
		}
		if pa, pb := a.Role.Priority(), b.Role.Priority(); pa != pb {
			return pa < pb
		}
		if a.EstablishmentName != b.EstablishmentName {
			return a.EstablishmentName < b.EstablishmentName
		}
		return a.ID < b.ID
	})
	return out
}

// SortByID orders affiliations deterministically without changing list.
func SortByID(list []Affiliation) []Affiliation {
	out := make([]Affiliation, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
