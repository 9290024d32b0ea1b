package catalog

import (
	"context"
	"fmt"

	"dabeat/core/apperr"
	"dabeat/model"
)

// TrackStore is the read side of the track repository used for browsing.
// Count and Find receive the same Filter for a given request.
type TrackStore interface {
	Count(ctx context.Context, f Filter) (int64, error)
	Find(ctx context.Context, f Filter, s Sort, offset, limit int) ([]*model.Track, error)
}

// Page is one page of catalog results.
type Page struct {
	Tracks     []*model.Track
	Total      int64
	TotalPages int
	Params     Params
}

// Service executes catalog queries.
type Service struct {
	store TrackStore
}

// NewService creates a catalog service over store.
func NewService(store TrackStore) *Service {
	return &Service{store: store}
}

// Browse runs the count and fetch for p as seen by viewer.
func (s *Service) Browse(ctx context.Context, p Params, viewer *model.User) (*Page, error) {
	q := Build(p, viewer)
	page := &Page{Params: p, Tracks: []*model.Track{}}

	if q.Filter.MatchesNothing() {
		return page, nil
	}

	total, err := s.store.Count(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: count tracks: %w", apperr.ErrCatalogUnavailable, err)
	}
	page.Total = total
	page.TotalPages = TotalPages(total)

	if int64(q.Offset) >= total {
		return page, nil
	}

	tracks, err := s.store.Find(ctx, q.Filter, q.Sort, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: find tracks: %w", apperr.ErrCatalogUnavailable, err)
	}
	page.Tracks = tracks
	return page, nil
}
