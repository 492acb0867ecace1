// Package cart holds the cart state model and the manager that applies
// mutations to it.
//
// State is a value: every operation returns a new State and leaves its input
// untouched. No entry ever has a quantity of 0 or less; a missing entry means
// quantity 0. The package never consults the product catalog.
package cart

import (
	"maps"
	"math"
)

// State maps product ids to positive quantities, remembering the order in
// which ids were first added.
type State struct {
	ids   []string
	items map[string]int
}

// Empty returns a State with no items.
func Empty() State {
	return State{}
}

// FromItems builds a State from ids in the given order. Non-positive
// quantities and repeated ids after the first are dropped.
func FromItems(ids []string, qty map[string]int) State {
	s := State{}
	for _, id := range ids {
		if _, dup := s.items[id]; dup {
			continue
		}
		s = s.with(id, qty[id])
	}
	return s
}

// Quantity returns the quantity of id, 0 when absent.
func (s State) Quantity(id string) int {
	return s.items[id]
}

// Has reports whether id has an entry.
func (s State) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of distinct products.
func (s State) Len() int {
	return len(s.ids)
}

// IsEmpty reports whether the cart has no items.
func (s State) IsEmpty() bool {
	return len(s.ids) == 0
}

// IDs returns product ids in insertion order.
func (s State) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Items returns a copy of the id to quantity mapping.
func (s State) Items() map[string]int {
	out := make(map[string]int, len(s.items))
	maps.Copy(out, s.items)
	return out
}

// TotalQuantity returns the number of units across all products.
func (s State) TotalQuantity() int {
	total := 0
	for _, q := range s.items {
		total += q
	}
	return total
}

// Equal reports whether both states hold the same items in the same order.
func (s State) Equal(o State) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for i, id := range s.ids {
		if o.ids[i] != id || o.items[id] != s.items[id] {
			return false
		}
	}
	return true
}

// SetQuantity sets id to qty, removing the entry when qty <= 0.
func SetQuantity(s State, id string, qty int) State {
	return s.with(id, qty)
}

// Increase adds by to the quantity of id, saturating at math.MaxInt. A result
// of 0 or less removes the entry.
func Increase(s State, id string, by int) State {
	return s.with(id, addSat(s.Quantity(id), by))
}

// Decrease subtracts by from the quantity of id, removing the entry when the
// result is 0 or less.
func Decrease(s State, id string, by int) State {
	if by == math.MinInt {
		return s.with(id, math.MaxInt)
	}
	return s.with(id, addSat(s.Quantity(id), -by))
}

// addSat returns qty+by clamped to the int range. qty is never negative.
func addSat(qty, by int) int {
	if by > 0 && qty > math.MaxInt-by {
		return math.MaxInt
	}
	return qty + by
}

// Clear returns an empty State.
func Clear(State) State {
	return Empty()
}

// with returns a copy of s where id has quantity qty.
func (s State) with(id string, qty int) State {
	cur, present := s.items[id]
	switch {
	case qty <= 0 && !present:
		return s
	case present && cur == qty:
		return s
	}

	next := State{
		ids:   make([]string, 0, len(s.ids)+1),
		items: make(map[string]int, len(s.items)+1),
	}
	for _, existing := range s.ids {
		if existing == id && qty <= 0 {
			continue
		}
		next.ids = append(next.ids, existing)
		next.items[existing] = s.items[existing]
	}
	if qty > 0 {
		if !present {
			next.ids = append(next.ids, id)
		}
		next.items[id] = qty
	}
	return next
}
