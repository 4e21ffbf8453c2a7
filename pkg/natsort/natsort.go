// Package natsort orders entities the way a person reads them: digit runs
// compare by numeric value, so "Item 9" sorts before "Item 10".
//
// Before sorting, every field of every entity holding a grouped number such
// as "1,358" is rewritten without separators. This happens for the whole
// collection regardless of which key is sorted on.
package natsort

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultKey is the sort key used when none is given.
const DefaultKey = swapi.FieldName

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Normalize strips thousands separators from grouped-number string fields of
// every entity, in place.
func Normalize(entities []swapi.Entity) {
	for _, e := range entities {
		for field, value := range e {
			s, ok := value.(string)
			if !ok || !groupedNumber.MatchString(s) {
				continue
			}
			e[field] = strings.ReplaceAll(s, ",", "")
		}
	}
}

// Sort normalizes entities and stable-sorts them in place by the natural
// order of key. An empty key sorts by name. Entities missing the key compare
// as "" and sort first.
func Sort(entities []swapi.Entity, key string) []swapi.Entity {
	if key == "" {
		key = DefaultKey
	}

	Normalize(entities)

	// Collators keep internal buffers and must not be shared across goroutines.
	c := newCollator()
	slices.SortStableFunc(entities, func(a, b swapi.Entity) int {
		return c.CompareString(a.String(key), b.String(key))
	})

	return entities
}

// Compare compares a and b in natural order.
func Compare(a, b string) int {
	return newCollator().CompareString(a, b)
}

func newCollator() *collate.Collator {
	return collate.New(language.English, collate.Numeric)
}
