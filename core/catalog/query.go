// Package catalog turns dashboard request parameters into a deterministic track query.
package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"dabeat/model"
)

// PageSize is the fixed number of tracks per dashboard page.
const PageSize = 3

// MaxPage is the largest page whose offset still fits in an int.
const MaxPage = math.MaxInt/PageSize + 1

// clampPage maps invalid pages to 1 and caps the rest at MaxPage.
func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// Sort 排序方式
type Sort string

const (
	SortNew        Sort = "new"
	SortOld        Sort = "old"
	SortAscending  Sort = "ascending"
	SortDescending Sort = "descending"
)

// ParseSort maps unknown values to SortNew.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortNew, SortOld, SortAscending, SortDescending:
		return Sort(s)
	default:
		return SortNew
	}
}

// OrderClause returns the SQL ORDER BY expression for the tracks table.
// The id tiebreaker follows the primary direction, so ascending and descending
// listings are exact reverses of each other.
func (s Sort) OrderClause() string {
	switch s {
	case SortOld:
		return "uploaded_at ASC, id ASC"
	case SortAscending:
		return "title ASC, id ASC"
	case SortDescending:
		return "title DESC, id DESC"
	default:
		return "uploaded_at DESC, id DESC"
	}
}

// Params are the dashboard controls, echoed back for re-rendering.
type Params struct {
	Page          int
	Search        string
	Genre         string
	Sort          Sort
	FavoritesOnly bool
}

// ParseParams reads page, search, genre, sort and showFav from a query string.
func ParseParams(q url.Values) Params {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	page = clampPage(page)

	genre := strings.TrimSpace(q.Get("genre"))
	if genre == "" {
		genre = model.GenreAny
	}

	return Params{
		Page:          page,
		Search:        strings.TrimSpace(q.Get("search")),
		Genre:         genre,
		Sort:          ParseSort(q.Get("sort")),
		FavoritesOnly: q.Get("showFav") == "on",
	}
}

// Filter is the track-matching predicate. The zero value matches every track.
type Filter struct {
	// RestrictIDs limits matches to IDs. An empty IDs slice then matches nothing.
	RestrictIDs bool
	IDs         []int64
	// Search is matched case-insensitively as a substring of title, artist or any tag.
	Search string
	// Genre is matched exactly; empty means no genre filter.
	Genre string
}

// MatchesNothing reports whether the filter is known to select no rows.
func (f Filter) MatchesNothing() bool {
	return f.RestrictIDs && len(f.IDs) == 0
}

// Query is a fully resolved catalog request.
type Query struct {
	Filter Filter
	Sort   Sort
	Offset int
	Limit  int
}

// Build resolves params against the viewer. viewer may be nil for anonymous browsing;
// its playlists must be loaded when FavoritesOnly is set.
func Build(p Params, viewer *model.User) Query {
	var f Filter

	if p.FavoritesOnly {
		f.RestrictIDs = true
		if fav := viewer.Favorites(); fav != nil {
			f.IDs = fav.TrackIDs()
		}
	}

	f.Search = p.Search

	if p.Genre != "" && p.Genre != model.GenreAny {
		f.Genre = p.Genre
	}

	page := clampPage(p.Page)

	return Query{
		Filter: f,
		Sort:   ParseSort(string(p.Sort)),
		Offset: (page - 1) * PageSize,
		Limit:  PageSize,
	}
}

// TotalPages is ceil(total / PageSize).
func TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + PageSize - 1) / PageSize)
}

// EscapeLike escapes LIKE wildcards using '!' as the escape character.
func EscapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
