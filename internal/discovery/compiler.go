package discovery

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"screenscape/discoveryservice/internal/domain"
)

// EntityResolver resolves entity names to catalog IDs, dropping misses.
type EntityResolver interface {
	ResolveAll(ctx context.Context, names []string, kind domain.EntityKind) []int64
}

// Compiler turns a parsed intent into one discover request per media type.
type Compiler struct {
	resolver EntityResolver
}

func NewCompiler(resolver EntityResolver) *Compiler {
	return &Compiler{resolver: resolver}
}

type resolvedEntities struct {
	keywords  []int64
	cast      []int64
	crew      []int64
	companies []int64
}

// Compile resolves every named entity once and builds the per-type
// requests, movie first. Unresolved names and unknown genres are dropped.
// When both types are requested and the genres map for only one of them,
// the other type is skipped rather than queried without a genre filter.
func (c *Compiler) Compile(ctx context.Context, intent domain.SearchIntent, opts domain.DiscoverOptions) []domain.DiscoverRequest {
	entities := c.resolve(ctx, intent)

	mediaTypes := intent.MediaType.Expand()
	genres := make(map[domain.MediaType][]int, len(mediaTypes))
	anyMapped := false
	for _, mediaType := range mediaTypes {
		genres[mediaType] = genreIDs(mediaType, intent.Genres)
		anyMapped = anyMapped || len(genres[mediaType]) > 0
	}

	requests := make([]domain.DiscoverRequest, 0, len(mediaTypes))
	for _, mediaType := range mediaTypes {
		if len(mediaTypes) > 1 && anyMapped && len(genres[mediaType]) == 0 {
			continue
		}
		request := domain.DiscoverRequest{
			MediaType:  mediaType,
			SortBy:     sortFor(mediaType, intent.SortBy),
			GenreIDs:   genres[mediaType],
			KeywordIDs: entities.keywords,
			CastIDs:    entities.cast,
			CrewIDs:    entities.crew,
			CompanyIDs: entities.companies,
			Page:       opts.Page,
		}
		if intent.YearFrom != nil {
			request.DateFrom = fmt.Sprintf("%04d-01-01", *intent.YearFrom)
		}
		if intent.YearTo != nil {
			request.DateTo = fmt.Sprintf("%04d-12-31", *intent.YearTo)
		}
		requests = append(requests, request)
	}
	return requests
}

func (c *Compiler) resolve(ctx context.Context, intent domain.SearchIntent) resolvedEntities {
	var out resolvedEntities
	if c.resolver == nil {
		return out
	}

	terms := make([]string, 0, len(intent.Keywords)+len(intent.Characters))
	terms = append(terms, intent.Keywords...)
	terms = append(terms, intent.Characters...)

	// Each lookup degrades to "no IDs" on its own; none returns an error.
	var group errgroup.Group
	group.Go(func() error {
		out.keywords = c.resolver.ResolveAll(ctx, terms, domain.EntityKeyword)
		return nil
	})
	group.Go(func() error {
		out.cast = c.resolver.ResolveAll(ctx, intent.Actors, domain.EntityPerson)
		return nil
	})
	group.Go(func() error {
		out.crew = c.resolver.ResolveAll(ctx, intent.Directors, domain.EntityPerson)
		return nil
	})
	group.Go(func() error {
		out.companies = c.resolver.ResolveAll(ctx, intent.Companies, domain.EntityCompany)
		return nil
	})
	_ = group.Wait()
	return out
}

func sortFor(mediaType domain.MediaType, sortBy domain.SortBy) string {
	if sortBy == "" {
		sortBy = domain.SortByPopularity
	}
	if mediaType == domain.MediaTypeTV && sortBy == domain.SortByReleaseDate {
		return "first_air_date.desc"
	}
	return string(sortBy)
}

func genreIDs(mediaType domain.MediaType, names []string) []int {
	ids := make([]int, 0, len(names))
	seen := make(map[int]struct{}, len(names))
	for _, name := range names {
		id, ok := domain.GenreID(mediaType, strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
