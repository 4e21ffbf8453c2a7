package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

// Links are the previous/next navigation links for a window.
type Links struct {
	Previous string `json:"prev"`
	Next     string `json:"next"`
	// Display is 1 when an explicit page was requested, 0 otherwise.
	Display int `json:"display"`
}

// NoLinks is used for views that are not paginated.
var NoLinks = Links{}

// Cycle returns the next and previous page of index inside [lo, hi],
// wrapping around at both ends. An index below lo moves next to lo; an
// index above hi moves previous to hi.
func Cycle(index, lo, hi int) (next, prev int) {
	next = index + 1
	if next > hi || index < lo {
		next = lo
	}

	prev = index - 1
	if prev < lo || index > hi {
		prev = hi
	}

	return next, prev
}

// BuildLinks builds the navigation links for route. Both links carry the sort
// key and the computed page; when p is absent the page is left empty.
func BuildLinks(route, sortKey string, p PageParam) Links {
	if !p.Present {
		return Links{
			Previous: buildURL(route, sortKey, ""),
			Next:     buildURL(route, sortKey, ""),
			Display:  0,
		}
	}

	next, prev := Cycle(p.Value, MinPage, MaxPage)
	return Links{
		Previous: buildURL(route, sortKey, strconv.Itoa(prev)),
		Next:     buildURL(route, sortKey, strconv.Itoa(next)),
		Display:  1,
	}
}

// buildURL appends sort and pg, in that order, to route.
func buildURL(route, sortKey, pg string) string {
	sep := "?"
	if strings.Contains(route, "?") {
		sep = "&"
	}
	return route + sep + "sort=" + url.QueryEscape(sortKey) + "&pg=" + url.QueryEscape(pg)
}
