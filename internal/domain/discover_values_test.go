package domain

import "testing"

func TestDiscoverRequestValuesJoinCharacters(t *testing.T) {
	values := DiscoverRequest{
		MediaType:  MediaTypeMovie,
		SortBy:     string(SortByPopularity),
		CastIDs:    []int64{16828, 3223},
		CompanyIDs: []int64{420, 2},
	}.Values()

	if got := values.Get("with_cast"); got != "16828,3223" {
		t.Fatalf("with_cast = %q", got)
	}
	if got := values.Get("with_companies"); got != "420|2" {
		t.Fatalf("with_companies = %q", got)
	}
}

func TestDiscoverRequestValuesOmitsEmptyFilters(t *testing.T) {
	values := DiscoverRequest{MediaType: MediaTypeTV, SortBy: string(SortByPopularity)}.Values()
	for _, key := range []string{"with_genres", "with_keywords", "with_cast", "with_crew", "with_companies", "page", "first_air_date.gte"} {
		if _, ok := values[key]; ok {
			t.Fatalf("expected %s to be omitted, got %v", key, values)
		}
	}
	if values.Get("sort_by") != "popularity.desc" {
		t.Fatalf("sort_by = %q", values.Get("sort_by"))
	}
}

func TestDiscoverRequestValuesDateFieldByMediaType(t *testing.T) {
	movie := DiscoverRequest{MediaType: MediaTypeMovie, DateFrom: "1990-01-01", DateTo: "1999-12-31"}.Values()
	if movie.Get("primary_release_date.gte") != "1990-01-01" || movie.Get("primary_release_date.lte") != "1999-12-31" {
		t.Fatalf("unexpected movie dates: %v", movie)
	}
	tv := DiscoverRequest{MediaType: MediaTypeTV, DateFrom: "1990-01-01"}.Values()
	if tv.Get("first_air_date.gte") != "1990-01-01" {
		t.Fatalf("unexpected tv dates: %v", tv)
	}
	if _, ok := tv["primary_release_date.gte"]; ok {
		t.Fatal("tv request must not use the movie date field")
	}
}
