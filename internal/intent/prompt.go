package intent

import (
	"fmt"
	"strings"

	"screenscape/discoveryservice/internal/domain"
)

func systemPrompt() string {
	return fmt.Sprintf(`You turn a person's description of what they want to watch into catalog search parameters.

Reply with one JSON object of the form:
{"search_params":{"keywords":[],"characters":[],"genres":[],"actors":[],"directors":[],"companies":[],"year_from":null,"year_to":null,"sort_by":"popularity.desc","media_type":"all"},"response_title":""}

Rules:
- genres: use ONLY names from this list, spelled exactly: %s. Leave anything else out of genres.
- actors and directors: full names exactly as a person would write them ("Robert Downey Jr.", not "Robert" or "Downey").
- characters: fictional characters such as "Tony Stark", "Thor" or "Batman". Never put characters in keywords or actors.
- companies: when the request names a franchise or brand, use the production company behind it ("Marvel" means "Marvel Studios", "Star Wars" means "Lucasfilm Ltd.").
- keywords: moods, vibes, themes and plot elements ("mind-bending", "heist", "time travel").
- year_from / year_to: four-digit years, only when the request implies a period ("90s" means 1990 to 1999).
- sort_by: one of popularity.desc, release_date.desc, vote_average.desc. Use release_date.desc for "new" or "latest", vote_average.desc for "best" or "top rated", otherwise popularity.desc.
- media_type: "movie" for films, "tv" for shows or series, "all" when unclear.
- response_title: one short, natural sentence describing the results, for example "Marvel movies starring Chris Evans".
- Use empty arrays and null for anything the request does not mention. Do not invent constraints.`,
		strings.Join(domain.GenreNames, ", "))
}

func userPrompt(query string) string {
	return "Request: " + strings.TrimSpace(query)
}
