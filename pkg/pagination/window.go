package pagination

import (
	"strconv"
	"strings"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
)

// Window bounds. Pages MinPage..MaxPage each select WindowSize entities.
const (
	WindowSize = 10
	MinPage    = 1
	MaxPage    = 5
)

// PageParam is an optional page index parsed from a request.
type PageParam struct {
	Value   int
	Present bool
}

// PageOf returns a present PageParam.
func PageOf(n int) PageParam {
	return PageParam{Value: n, Present: true}
}

// ParsePageParam parses a raw query value. Empty, non-numeric and zero
// values are absent.
func ParsePageParam(raw string) PageParam {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return PageParam{}
	}
	return PageOf(n)
}

// String returns the page number, or "" when absent.
func (p PageParam) String() string {
	if !p.Present {
		return ""
	}
	return strconv.Itoa(p.Value)
}

// Window returns the slice of entities selected by p. Pages outside
// MinPage..MaxPage, and absent pages, select the whole collection. Windows
// past the end of the collection are empty, not an error.
func Window(entities []swapi.Entity, p PageParam) []swapi.Entity {
	if !p.Present || p.Value < MinPage || p.Value > MaxPage {
		return entities
	}

	start := (p.Value - 1) * WindowSize
	end := start + WindowSize
	if start > len(entities) {
		start = len(entities)
	}
	if end > len(entities) {
		end = len(entities)
	}
	return entities[start:end]
}
