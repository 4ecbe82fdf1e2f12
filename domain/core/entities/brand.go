package entities

import (
	"encoding/json"
	"sort"
)

// Brand is a device brand and the set of models known for it.
type Brand struct {
	Name   string
	Models ModelSet
}

// ModelSet is an unordered set of model names.
type ModelSet map[string]struct{}

// NewModelSet builds a set from the given names, dropping duplicates.
func NewModelSet(models ...string) ModelSet {
	set := make(ModelSet, len(models))
	for _, m := range models {
		set[m] = struct{}{}
	}
	return set
}

// Has reports whether the model is in the set.
func (s ModelSet) Has(model string) bool {
	_, ok := s[model]
	return ok
}

// Sorted returns the models in lexical order.
func (s ModelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as an ordered array.
func (s ModelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts an array of names; null yields an empty set.
func (s *ModelSet) UnmarshalJSON(b []byte) error {
	var models []string
	if err := json.Unmarshal(b, &models); err != nil {
		return err
	}
	*s = NewModelSet(models...)
	return nil
}
