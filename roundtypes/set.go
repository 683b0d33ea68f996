// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package roundtypes

import (
	"encoding/json"

	"golang.org/x/exp/maps"
)

// The minimum capacity of a set.
const minSetSize = 16

var (
	_ json.Marshaler   = (*Set[int])(nil)
	_ json.Unmarshaler = (*Set[int])(nil)
)

// Set is a set of comparable elements, used for completed_pairs,
// agent_runs_started_ids and phases_done. These sets only grow, and Set has
// no operation that removes an element.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := NewSet[T](len(elts))
	s.Add(elts...)
	return s
}

// NewSet returns a new set with initial capacity size. More or fewer than
// size elements can be added to it.
func NewSet[T comparable](size int) Set[T] {
	if size < 0 {
		return Set[T]{}
	}
	return make(map[T]struct{}, size)
}

func (s *Set[T]) resize(size int) {
	if *s == nil {
		if minSetSize > size {
			size = minSetSize
		}
		*s = make(map[T]struct{}, size)
	}
}

// Add adds all the given elements to the set. Adding an element already
// present is a no-op.
func (s *Set[T]) Add(elts ...T) {
	s.resize(2 * len(elts))
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
}

// Contains reports whether elt is in the set.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the set's elements. The order is not defined.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}

// MarshalJSON marshals the set as a JSON list, matching the teacher's
// json.Marshaler implementation for the same type.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes a JSON list back into the set, the inverse of
// MarshalJSON. Required for checkpoint round-tripping: encoding/json
// cannot decode a JSON array into a bare Go map without this.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var elts []T
	if err := json.Unmarshal(data, &elts); err != nil {
		return err
	}
	*s = make(map[T]struct{}, minSetSize)
	for _, elt := range elts {
		(*s)[elt] = struct{}{}
	}
	return nil
}
