package pagination

import (
	"fmt"
	"testing"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
)

func makeEntities(n int) []swapi.Entity {
	out := make([]swapi.Entity, n)
	for i := range out {
		out[i] = swapi.Entity{"name": fmt.Sprintf("e%d", i)}
	}
	return out
}

func TestParsePageParam(t *testing.T) {
	tests := []struct {
		raw  string
		want PageParam
	}{
		{"", PageParam{}},
		{"abc", PageParam{}},
		{"3abc", PageParam{}},
		{"0", PageParam{}},
		{"1", PageOf(1)},
		{" 4 ", PageOf(4)},
		{"5", PageOf(5)},
		{"6", PageOf(6)},
		{"-2", PageOf(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParsePageParam(tt.raw); got != tt.want {
				t.Errorf("ParsePageParam(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPageParam_String(t *testing.T) {
	if got := (PageParam{}).String(); got != "" {
		t.Errorf("absent String() = %q, want empty", got)
	}
	if got := PageOf(3).String(); got != "3" {
		t.Errorf("String() = %q, want 3", got)
	}
}

func TestWindow(t *testing.T) {
	fifty := makeEntities(50)

	tests := []struct {
		name      string
		entities  []swapi.Entity
		page      PageParam
		wantLen   int
		wantFirst string
	}{
		{"absent returns all", fifty, PageParam{}, 50, "e0"},
		{"window 1", fifty, PageOf(1), 10, "e0"},
		{"window 3", fifty, PageOf(3), 10, "e20"},
		{"window 5", fifty, PageOf(5), 10, "e40"},
		{"above range returns all", fifty, PageOf(6), 50, "e0"},
		{"below range returns all", fifty, PageOf(-1), 50, "e0"},
		{"partial last window", makeEntities(45), PageOf(5), 5, "e40"},
		{"past the end is empty", makeEntities(15), PageOf(3), 0, ""},
		{"empty collection", nil, PageOf(1), 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(tt.entities, tt.page)
			if len(got) != tt.wantLen {
				t.Fatalf("len(Window) = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Name() != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0].Name(), tt.wantFirst)
			}
		})
	}
}

func TestWindow_ExactPositions(t *testing.T) {
	fifty := makeEntities(50)
	got := Window(fifty, PageOf(3))

	for i, e := range got {
		if want := fmt.Sprintf("e%d", 20+i); e.Name() != want {
			t.Errorf("got[%d] = %q, want %q", i, e.Name(), want)
		}
	}
}
