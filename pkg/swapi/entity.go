// Package swapi defines the resource model shared by the upstream client,
// the aggregator, and the pipelines built on top of them.
package swapi

import (
	"encoding/json"
	"strings"
)

// Collection names exposed by the upstream API.
const (
	People    = "people"
	Planets   = "planets"
	Films     = "films"
	Species   = "species"
	Starships = "starships"
	Vehicles  = "vehicles"
)

// Well-known entity fields.
const (
	FieldName      = "name"
	FieldURL       = "url"
	FieldHomeworld = "homeworld"
)

// Entity is a single upstream record. Fields are kept as decoded JSON so any
// of them can be selected as a sort key.
type Entity map[string]any

// String returns the value of field as a string.
// Returns "" if the field is missing or not a string.
func (e Entity) String(field string) string {
	if e == nil {
		return ""
	}
	s, _ := e[field].(string)
	return s
}

// Name returns the display key of the entity.
func (e Entity) Name() string {
	return e.String(FieldName)
}

// SelfReference returns the canonical URL of the entity.
func (e Entity) SelfReference() string {
	return e.String(FieldURL)
}

// HomeReference returns the URL of the entity's home planet.
func (e Entity) HomeReference() string {
	return e.String(FieldHomeworld)
}

// Page is one fetched page of a collection.
type Page struct {
	Results []Entity
	HasNext bool
}

// listResponse is the wire format of a collection page.
type listResponse struct {
	Count   int      `json:"count"`
	Next    *string  `json:"next"`
	Results []Entity `json:"results"`
}

// DecodePage parses a collection page body.
func DecodePage(data []byte) (*Page, error) {
	var body listResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	results := body.Results
	if results == nil {
		results = []Entity{}
	}

	return &Page{
		Results: results,
		HasNext: body.Next != nil && strings.TrimSpace(*body.Next) != "",
	}, nil
}
