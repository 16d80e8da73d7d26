package models

import "slices"

// ItemSet is a set of completed item identifiers for one skill category.
type ItemSet map[string]struct{}

func NewItemSet(ids ...string) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ItemSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s ItemSet) Len() int { return len(s) }

// Slice returns the identifiers in sorted order.
func (s ItemSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
