// Package join groups child entities under the parent entities they refer to.
package join

import (
	"bytes"
	"encoding/json"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
)

// Default join keys: a person's homeworld refers to a planet's url.
const (
	DefaultParentKey = swapi.FieldURL
	DefaultChildKey  = swapi.FieldHomeworld
)

// Mapping is an insertion-ordered map from parent name to child names.
// It marshals to a JSON object with keys in parent order.
type Mapping struct {
	keys     []string
	children map[string][]string
}

func newMapping(capacity int) *Mapping {
	return &Mapping{
		keys:     make([]string, 0, capacity),
		children: make(map[string][]string, capacity),
	}
}

// add registers parent (once) and appends names to its children.
func (m *Mapping) add(parent string, names ...string) {
	if _, ok := m.children[parent]; !ok {
		m.keys = append(m.keys, parent)
		m.children[parent] = []string{}
	}
	m.children[parent] = append(m.children[parent], names...)
}

// Keys returns the parent names in order.
func (m *Mapping) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the children of parent.
func (m *Mapping) Get(parent string) ([]string, bool) {
	names, ok := m.children[parent]
	return names, ok
}

// Len returns the number of parents.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// MarshalJSON implements json.Marshaler.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.children[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Join maps each parent's name to the names of the children whose childKey
// equals the parent's parentKey. Every parent appears, in parent order, with
// children in child order. Empty keys default to DefaultParentKey and
// DefaultChildKey. Children with an empty childKey value never match.
//
// Parents sharing a name share one entry.
func Join(parents, children []swapi.Entity, parentKey, childKey string) *Mapping {
	if parentKey == "" {
		parentKey = DefaultParentKey
	}
	if childKey == "" {
		childKey = DefaultChildKey
	}

	byRef := make(map[string][]string)
	for _, child := range children {
		ref := child.String(childKey)
		if ref == "" {
			continue
		}
		byRef[ref] = append(byRef[ref], child.Name())
	}

	m := newMapping(len(parents))
	for _, parent := range parents {
		ref := parent.String(parentKey)
		if ref == "" {
			m.add(parent.Name())
			continue
		}
		m.add(parent.Name(), byRef[ref]...)
	}

	return m
}
