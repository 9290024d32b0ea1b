package server

import (
	"net/url"
	"strconv"

	"dabeat/core/catalog"
	"dabeat/model"
)

// 页面模板数据

type authView struct {
	User         *model.User
	Error        string
	Message      string
	ShowRegister bool
}

type homeView struct {
	User *model.User
}

type dashboardView struct {
	User          *model.User
	Tracks        []*model.Track
	CurrentPage   int
	TotalPages    int
	Search        string
	Genre         string
	Sort          string
	ShowFav       bool
	PreviewNormal bool
	Error         string
	Message       string
	Error2        string
	Message2      string
	Blocks        []model.RenderedBlock
}

// PageURL links to page n keeping the current filters.
func (v dashboardView) PageURL(n int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	if v.Search != "" {
		q.Set("search", v.Search)
	}
	if v.Genre != "" && v.Genre != model.GenreAny {
		q.Set("genre", v.Genre)
	}
	if v.Sort != "" && v.Sort != string(catalog.SortNew) {
		q.Set("sort", v.Sort)
	}
	if v.ShowFav {
		q.Set("showFav", "on")
	}
	if v.PreviewNormal {
		q.Set("previewNormal", "1")
	}
	return "/dashboard?" + q.Encode()
}

type uploadView struct {
	User  *model.User
	Error string
}

type songView struct {
	User         *model.User
	Song         *model.Track
	IsFavorited  bool
	AuthorExists bool
	CanEdit      bool
	Error        string
	Success      string
}

type editView struct {
	User  *model.User
	Song  *model.Track
	Error string
}

type profileView struct {
	User           *model.User
	Profile        *model.User
	Songs          []*model.Track
	FavSongs       []*model.Track
	AccountAgeDays int
	CanDelete      bool
	Message        string
	Success        string
	Error          string
}

type errorView struct {
	User    *model.User
	Message string
}

// blockData is what admin-authored block templates can reference.
type blockData struct {
	User       *model.User
	TrackCount int64
}
