package domain

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	joinAll = ","
	joinAny = "|"
)

// Values renders the request as catalog discover query parameters. Cast,
// crew, genre and keyword filters are comma-joined (all must match);
// companies are pipe-joined (any may match). Empty filters are omitted.
func (r DiscoverRequest) Values() url.Values {
	values := url.Values{}
	if r.SortBy != "" {
		values.Set("sort_by", r.SortBy)
	}
	if r.Page > 0 {
		values.Set("page", strconv.Itoa(r.Page))
	}
	if len(r.GenreIDs) > 0 {
		parts := make([]string, 0, len(r.GenreIDs))
		for _, id := range r.GenreIDs {
			parts = append(parts, strconv.Itoa(id))
		}
		values.Set("with_genres", strings.Join(parts, joinAll))
	}
	setIDs(values, "with_keywords", r.KeywordIDs, joinAll)

	dateField := "primary_release_date"
	if r.MediaType == MediaTypeTV {
		dateField = "first_air_date"
	}
	if r.DateFrom != "" {
		values.Set(dateField+".gte", r.DateFrom)
	}
	if r.DateTo != "" {
		values.Set(dateField+".lte", r.DateTo)
	}

	setIDs(values, "with_cast", r.CastIDs, joinAll)
	setIDs(values, "with_crew", r.CrewIDs, joinAll)
	setIDs(values, "with_companies", r.CompanyIDs, joinAny)
	return values
}

func setIDs(values url.Values, key string, ids []int64, sep string) {
	if len(ids) == 0 {
		return
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	values.Set(key, strings.Join(parts, sep))
}
