package repository

import (
	"context"
	"fmt"

	"dabeat/model"

	"gorm.io/gorm"
)

// PlaylistRepository manages the song references inside playlists.
type PlaylistRepository interface {
	AddSong(ctx context.Context, playlistID, trackID int64) error
	RemoveSong(ctx context.Context, playlistID, trackID int64) (bool, error)
	RemoveTrackFromAll(ctx context.Context, trackID int64) (int64, error)
}

type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository creates a playlist repository over db (which may be a transaction).
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// AddSong appends trackID at the end of the playlist.
func (r *gormPlaylistRepository) AddSong(ctx context.Context, playlistID, trackID int64) error {
	var maxPos *int
	err := r.db.WithContext(ctx).Model(&model.PlaylistSong{}).
		Where("playlist_id = ?", playlistID).
		Select("MAX(position)").
		Scan(&maxPos).Error
	if err != nil {
		return fmt.Errorf("failed to read playlist %d positions: %w", playlistID, err)
	}

	pos := 0
	if maxPos != nil {
		pos = *maxPos + 1
	}

	song := &model.PlaylistSong{PlaylistID: playlistID, TrackID: trackID, Position: pos}
	if err := r.db.WithContext(ctx).Create(song).Error; err != nil {
		return fmt.Errorf("failed to add track %d to playlist %d: %w", trackID, playlistID, err)
	}
	return nil
}

// RemoveSong 从歌单中移除歌曲，返回是否确实删除了记录
func (r *gormPlaylistRepository) RemoveSong(ctx context.Context, playlistID, trackID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
		Delete(&model.PlaylistSong{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove track %d from playlist %d: %w", trackID, playlistID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RemoveTrackFromAll prunes trackID from every playlist of every user.
func (r *gormPlaylistRepository) RemoveTrackFromAll(ctx context.Context, trackID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("track_id = ?", trackID).
		Delete(&model.PlaylistSong{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune track %d from playlists: %w", trackID, res.Error)
	}
	return res.RowsAffected, nil
}
