package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeSortByDefaultsToPopularity(t *testing.T) {
	cases := map[string]SortBy{
		"":                   SortByPopularity,
		"rating":             SortByPopularity,
		"popularity.desc":    SortByPopularity,
		"release_date.desc":  SortByReleaseDate,
		" VOTE_AVERAGE.DESC": SortByVoteAverage,
	}
	for raw, want := range cases {
		if got := NormalizeSortBy(raw); got != want {
			t.Fatalf("NormalizeSortBy(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestMediaTypeExpand(t *testing.T) {
	if got := NormalizeMediaType("TV").Expand(); !reflect.DeepEqual(got, []MediaType{MediaTypeTV}) {
		t.Fatalf("unexpected tv expansion: %v", got)
	}
	if got := NormalizeMediaType("movie").Expand(); !reflect.DeepEqual(got, []MediaType{MediaTypeMovie}) {
		t.Fatalf("unexpected movie expansion: %v", got)
	}
	got := NormalizeMediaType("anything").Expand()
	if !reflect.DeepEqual(got, []MediaType{MediaTypeMovie, MediaTypeTV}) {
		t.Fatalf("expected movie then tv, got %v", got)
	}
}
