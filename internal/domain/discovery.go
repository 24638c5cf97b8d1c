package domain

import (
	"strings"
	"time"
)

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeAll   MediaType = "all"
)

// NormalizeMediaType maps anything unrecognized to MediaTypeAll.
func NormalizeMediaType(raw string) MediaType {
	switch MediaType(strings.ToLower(strings.TrimSpace(raw))) {
	case MediaTypeMovie:
		return MediaTypeMovie
	case MediaTypeTV:
		return MediaTypeTV
	default:
		return MediaTypeAll
	}
}

// Expand returns the concrete media types a query must be issued for,
// movie always first.
func (m MediaType) Expand() []MediaType {
	switch m {
	case MediaTypeMovie:
		return []MediaType{MediaTypeMovie}
	case MediaTypeTV:
		return []MediaType{MediaTypeTV}
	default:
		return []MediaType{MediaTypeMovie, MediaTypeTV}
	}
}

type SortBy string

const (
	SortByPopularity  SortBy = "popularity.desc"
	SortByReleaseDate SortBy = "release_date.desc"
	SortByVoteAverage SortBy = "vote_average.desc"
)

func NormalizeSortBy(raw string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByReleaseDate:
		return SortByReleaseDate
	case SortByVoteAverage:
		return SortByVoteAverage
	default:
		return SortByPopularity
	}
}

type EntityKind string

const (
	EntityPerson  EntityKind = "person"
	EntityCompany EntityKind = "company"
	EntityKeyword EntityKind = "keyword"
)

// SearchIntent is the structured form of a free-text request.
type SearchIntent struct {
	Keywords      []string  `json:"keywords"`
	Characters    []string  `json:"characters"`
	Genres        []string  `json:"genres"`
	Actors        []string  `json:"actors"`
	Directors     []string  `json:"directors"`
	Companies     []string  `json:"companies"`
	YearFrom      *int      `json:"yearFrom,omitempty"`
	YearTo        *int      `json:"yearTo,omitempty"`
	SortBy        SortBy    `json:"sortBy"`
	MediaType     MediaType `json:"mediaType"`
	OriginalQuery string    `json:"originalQuery"`
}

type ParsedIntent struct {
	Intent        SearchIntent `json:"intent"`
	ResponseTitle string       `json:"responseTitle"`
}

// MediaRecord is a catalog item normalized for presentation. Identity is
// (ID, Type).
type MediaRecord struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Type        MediaType `json:"type"`
	Overview    string    `json:"overview,omitempty"`
	Popularity  float64   `json:"popularity"`
	VoteAverage float64   `json:"voteAverage"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	ReleaseYear string    `json:"releaseYear,omitempty"`
	PosterRef   string    `json:"posterRef,omitempty"`
	BackdropRef string    `json:"backdropRef,omitempty"`
}

// DiscoverRequest is one compiled catalog discover call.
type DiscoverRequest struct {
	MediaType  MediaType `json:"mediaType"`
	SortBy     string    `json:"sortBy"`
	GenreIDs   []int     `json:"genreIds,omitempty"`
	KeywordIDs []int64   `json:"keywordIds,omitempty"`
	DateFrom   string    `json:"dateFrom,omitempty"`
	DateTo     string    `json:"dateTo,omitempty"`
	CastIDs    []int64   `json:"castIds,omitempty"`
	CrewIDs    []int64   `json:"crewIds,omitempty"`
	CompanyIDs []int64   `json:"companyIds,omitempty"`
	Page       int       `json:"page,omitempty"`
}

type DiscoverOptions struct {
	Page int
}

type SourceStatus struct {
	MediaType MediaType `json:"mediaType"`
	OK        bool      `json:"ok"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
}

type DiscoveryResponse struct {
	Query      string         `json:"query"`
	Title      string         `json:"title"`
	Intent     SearchIntent   `json:"intent"`
	Items      []MediaRecord  `json:"items"`
	Sources    []SourceStatus `json:"sources"`
	TotalItems int            `json:"totalItems"`
	ElapsedMS  int64          `json:"elapsedMs"`
}

type QuotaStatus struct {
	Allowed   bool      `json:"allowed"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

type HistoryEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// EndpointDiagnostics reports the observed health of one catalog endpoint.
type EndpointDiagnostics struct {
	Endpoint            string     `json:"endpoint"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastStatusCode      int        `json:"lastStatusCode,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	TotalRequests       int64      `json:"totalRequests"`
	TotalFailures       int64      `json:"totalFailures"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// Entity is a named catalog object returned by a search-by-name call.
type Entity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
