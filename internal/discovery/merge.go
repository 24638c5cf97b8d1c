package discovery

import "screenscape/discoveryservice/internal/domain"

// Merge interleaves movie and TV results by index, movie first, appending
// the longer list's remainder. A single list passes through unchanged.
func Merge(perType map[domain.MediaType][]domain.MediaRecord) []domain.MediaRecord {
	movies := perType[domain.MediaTypeMovie]
	shows := perType[domain.MediaTypeTV]

	longest := len(movies)
	if len(shows) > longest {
		longest = len(shows)
	}
	merged := make([]domain.MediaRecord, 0, len(movies)+len(shows))
	for i := 0; i < longest; i++ {
		if i < len(movies) {
			merged = append(merged, movies[i])
		}
		if i < len(shows) {
			merged = append(merged, shows[i])
		}
	}
	return merged
}
