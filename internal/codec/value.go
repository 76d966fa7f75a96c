// Package codec implements the canonical, deterministic serialization used
// throughout recordsync as the SHA-256 hash pre-image (spec.md §4.1). It
// operates over a small JSON-equivalent object model: objects, arrays,
// strings, numbers, booleans, and null.
//
// Go's map[string]any has no stable iteration order and encoding/json sorts
// object keys alphabetically when marshaling a map, neither of which is
// acceptable for a canonical form that must preserve "type names in
// configured order" and "payload fields in a deterministic order defined by
// the payload type." OrderedMap carries its own key order explicitly instead.
package codec

// OrderedMap is a JSON object that remembers insertion order. It is the only
// object representation this package accepts for Serialize and produces from
// Parse — plain map[string]any is rejected by Serialize because its
// iteration order is not meaningful.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns an empty ordered map ready for Set calls.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set appends key to the order (if new) or overwrites it in place (if
// already present) and stores value.
func (m *OrderedMap) Set(key string, value any) *OrderedMap {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value

	return m
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The caller must not mutate it.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of keys.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}
