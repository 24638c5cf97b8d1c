package domain

// GenreNames is the closed set of genre names a parsed intent may carry.
var GenreNames = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "History", "Horror", "Music", "Mystery",
	"Romance", "Science Fiction", "TV Movie", "Thriller", "War", "Western",
}

var movieGenreIDs = map[string]int{
	"action":          28,
	"adventure":       12,
	"animation":       16,
	"comedy":          35,
	"crime":           80,
	"documentary":     99,
	"drama":           18,
	"family":          10751,
	"fantasy":         14,
	"history":         36,
	"horror":          27,
	"music":           10402,
	"mystery":         9648,
	"romance":         10749,
	"science fiction": 878,
	"tv movie":        10770,
	"thriller":        53,
	"war":             10752,
	"western":         37,
}

// The TV catalog merges some movie genres into combined ones and has no
// equivalent for others; those names have no entry here.
var tvGenreIDs = map[string]int{
	"action":          10759,
	"adventure":       10759,
	"animation":       16,
	"comedy":          35,
	"crime":           80,
	"documentary":     99,
	"drama":           18,
	"family":          10751,
	"fantasy":         10765,
	"mystery":         9648,
	"science fiction": 10765,
	"war":             10768,
	"western":         37,
}

// GenreID maps a lower-cased genre name to the catalog genre ID for the
// media type.
func GenreID(mediaType MediaType, name string) (int, bool) {
	table := movieGenreIDs
	if mediaType == MediaTypeTV {
		table = tvGenreIDs
	}
	id, ok := table[name]
	return id, ok
}
