package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dabeat/core/catalog"
	"dabeat/model"

	"gorm.io/gorm"
)

// TrackRepository defines the interface for track data operations.
// It also serves the catalog through Count and Find.
type TrackRepository interface {
	catalog.TrackStore

	CreateTrack(ctx context.Context, track *model.Track) error
	GetTrackByID(ctx context.Context, id int64) (*model.Track, error)
	GetTracksByArtist(ctx context.Context, artist string) ([]*model.Track, error)
	GetTracksByIDs(ctx context.Context, ids []int64) ([]*model.Track, error)
	UpdateTrack(ctx context.Context, track *model.Track) error
	AdjustFavoritesCount(ctx context.Context, id int64, delta int) error
	DeleteTrack(ctx context.Context, id int64) error
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a track repository over db (which may be a transaction).
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// orderedTags keeps preloaded tags in insertion order.
func orderedTags(tx *gorm.DB) *gorm.DB {
	return tx.Order("track_tags.id ASC")
}

// applyFilter translates a catalog filter into WHERE clauses.
func applyFilter(tx *gorm.DB, f catalog.Filter) *gorm.DB {
	if f.RestrictIDs {
		if len(f.IDs) == 0 {
			return tx.Where("1 = 0")
		}
		tx = tx.Where("tracks.id IN ?", f.IDs)
	}

	if f.Search != "" {
		pattern := "%" + catalog.EscapeLike(strings.ToLower(f.Search)) + "%"
		tx = tx.Where(
			"(LOWER(tracks.title) LIKE ? ESCAPE '!'"+
				" OR LOWER(tracks.artist_name) LIKE ? ESCAPE '!'"+
				" OR EXISTS (SELECT 1 FROM track_tags WHERE track_tags.track_id = tracks.id AND LOWER(track_tags.tag) LIKE ? ESCAPE '!'))",
			pattern, pattern, pattern,
		)
	}

	if f.Genre != "" {
		tx = tx.Where("tracks.genre = ?", f.Genre)
	}
	return tx
}

// Count returns the number of tracks matching f.
func (r *gormTrackRepository) Count(ctx context.Context, f catalog.Filter) (int64, error) {
	var total int64
	err := applyFilter(r.db.WithContext(ctx).Model(&model.Track{}), f).Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return total, nil
}

// Find returns one window of tracks matching f, ordered by s.
func (r *gormTrackRepository) Find(ctx context.Context, f catalog.Filter, s catalog.Sort, offset, limit int) ([]*model.Track, error) {
	var tracks []*model.Track
	err := applyFilter(r.db.WithContext(ctx).Model(&model.Track{}), f).
		Preload("Tags", orderedTags).
		Order(s.OrderClause()).
		Offset(offset).
		Limit(limit).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tracks: %w", err)
	}
	return tracks, nil
}

// CreateTrack inserts the track together with its tags.
func (r *gormTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track %q: %w", track.Title, err)
	}
	return nil
}

// GetTrackByID 根据ID获取歌曲，不存在时返回 nil
func (r *gormTrackRepository) GetTrackByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Preload("Tags", orderedTags).First(&track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track by ID %d: %w", id, err)
	}
	return &track, nil
}

// GetTracksByArtist returns an artist's uploads, newest first.
func (r *gormTrackRepository) GetTracksByArtist(ctx context.Context, artist string) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Preload("Tags", orderedTags).
		Where("artist_name = ?", artist).
		Order(catalog.SortNew.OrderClause()).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tracks by artist %s: %w", artist, err)
	}
	return tracks, nil
}

// GetTracksByIDs returns the existing tracks among ids, in the order of ids.
func (r *gormTrackRepository) GetTracksByIDs(ctx context.Context, ids []int64) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}

	var found []*model.Track
	if err := r.db.WithContext(ctx).Preload("Tags", orderedTags).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to get tracks by IDs: %w", err)
	}

	byID := make(map[int64]*model.Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	tracks := make([]*model.Track, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// UpdateTrack saves the editable fields and replaces the tag set.
func (r *gormTrackRepository) UpdateTrack(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Track{}).Where("id = ?", track.ID).Updates(map[string]interface{}{
			"title":       track.Title,
			"genre":       track.Genre,
			"description": track.Description,
			"cover_image": track.CoverImage,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update track %d: %w", track.ID, res.Error)
		}

		// 标签整体替换
		if err := tx.Where("track_id = ?", track.ID).Delete(&model.TrackTag{}).Error; err != nil {
			return fmt.Errorf("failed to clear tags of track %d: %w", track.ID, err)
		}
		if len(track.Tags) == 0 {
			return nil
		}
		for i := range track.Tags {
			track.Tags[i].ID = 0
			track.Tags[i].TrackID = track.ID
		}
		if err := tx.Create(&track.Tags).Error; err != nil {
			return fmt.Errorf("failed to save tags of track %d: %w", track.ID, err)
		}
		return nil
	})
}

// AdjustFavoritesCount adds delta to the counter. Decrements never go below zero.
func (r *gormTrackRepository) AdjustFavoritesCount(ctx context.Context, id int64, delta int) error {
	var expr interface{}
	switch {
	case delta > 0:
		expr = gorm.Expr("favorites_count + ?", delta)
	case delta < 0:
		expr = gorm.Expr("CASE WHEN favorites_count >= ? THEN favorites_count - ? ELSE 0 END", -delta, -delta)
	default:
		return nil
	}

	err := r.db.WithContext(ctx).Model(&model.Track{}).
		Where("id = ?", id).
		UpdateColumn("favorites_count", expr).Error
	if err != nil {
		return fmt.Errorf("failed to adjust favorites of track %d: %w", id, err)
	}
	return nil
}

// DeleteTrack removes the track row and its tags.
func (r *gormTrackRepository) DeleteTrack(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&model.TrackTag{}).Error; err != nil {
			return fmt.Errorf("failed to delete tags of track %d: %w", id, err)
		}
		if err := tx.Delete(&model.Track{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete track %d: %w", id, err)
		}
		return nil
	})
}
