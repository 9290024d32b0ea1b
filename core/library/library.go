// Package library owns track mutations: favorites, ownership checks, upload, edit and the delete cascade.
package library

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"dabeat/core/apperr"
	"dabeat/logger"
	"dabeat/model"
	"dabeat/repository"
	"dabeat/storage"

	"gorm.io/gorm"
)

// DefaultMediaTimeout bounds each call to the media host.
const DefaultMediaTimeout = 30 * time.Second

// CanMutate reports whether user may edit or delete track.
func CanMutate(user *model.User, track *model.Track) bool {
	if user == nil || track == nil {
		return false
	}
	return user.Username == track.ArtistName || user.IsAdmin
}

// Authorize distinguishes a missing track from a forbidden one.
func Authorize(user *model.User, track *model.Track) error {
	if track == nil {
		return apperr.ErrNotFound
	}
	if !CanMutate(user, track) {
		return apperr.ErrForbidden
	}
	return nil
}

// Service 曲库写操作
type Service struct {
	db           *gorm.DB
	media        *storage.Host
	locks        *keyedMutex
	mediaTimeout time.Duration
}

// NewService creates the library service. A non-positive mediaTimeout uses DefaultMediaTimeout.
func NewService(db *gorm.DB, media *storage.Host, mediaTimeout time.Duration) *Service {
	if mediaTimeout <= 0 {
		mediaTimeout = DefaultMediaTimeout
	}
	return &Service{
		db:           db,
		media:        media,
		locks:        newKeyedMutex(),
		mediaTimeout: mediaTimeout,
	}
}

// detached returns a context that survives client cancellation but still times out.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.mediaTimeout)
}

// ToggleFavorite flips trackID in the user's Favorites playlist and adjusts the
// track's counter in the same transaction. It returns the new membership state.
func (s *Service) ToggleFavorite(ctx context.Context, userID, trackID int64) (bool, error) {
	unlock := s.locks.Lock(fmt.Sprintf("%d:%d", userID, trackID))
	defer unlock()

	ctx, cancel := s.detached(ctx)
	defer cancel()

	var favorited bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewGormUserRepository(tx)
		tracks := repository.NewGormTrackRepository(tx)
		playlists := repository.NewGormPlaylistRepository(tx)

		user, err := users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %d: %w", userID, apperr.ErrNotFound)
		}

		track, err := tracks.GetTrackByID(ctx, trackID)
		if err != nil {
			return err
		}
		if track == nil {
			return fmt.Errorf("track %d: %w", trackID, apperr.ErrNotFound)
		}

		fav := user.Favorites()
		if fav == nil {
			return fmt.Errorf("user %s: %w", user.Username, apperr.ErrNoFavoritesPlaylist)
		}

		if fav.Contains(trackID) {
			favorited = false
			return removeFavorite(ctx, playlists, tracks, fav.ID, trackID)
		}

		if err := playlists.AddSong(ctx, fav.ID, trackID); err != nil {
			return err
		}
		favorited = true
		return tracks.AdjustFavoritesCount(ctx, trackID, 1)
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

// removeFavorite drops trackID from the playlist. The counter only moves when a row was
// actually deleted; another process may have removed it after our read.
func removeFavorite(ctx context.Context, playlists repository.PlaylistRepository, tracks repository.TrackRepository, playlistID, trackID int64) error {
	removed, err := playlists.RemoveSong(ctx, playlistID, trackID)
	if err != nil {
		return err
	}
	if !removed {
		logger.Debug("[Favorite] 收藏已被移除，跳过计数", logger.Int64("playlistId", playlistID), logger.Int64("trackId", trackID))
		return nil
	}
	return tracks.AdjustFavoritesCount(ctx, trackID, -1)
}

// DeleteTrack removes the track after checking ownership. Playlist references and the
// record go in one transaction; hosted media is deleted afterwards, best effort.
// The deleted track is returned so callers can redirect to its owner.
func (s *Service) DeleteTrack(ctx context.Context, actor *model.User, trackID int64) (*model.Track, error) {
	track, err := repository.NewGormTrackRepository(s.db).GetTrackByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, track); err != nil {
		return track, err
	}

	ctx, cancel := s.detached(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pruned, err := repository.NewGormPlaylistRepository(tx).RemoveTrackFromAll(ctx, trackID)
		if err != nil {
			return err
		}
		logger.Info("[DeleteTrack] removed track from playlists",
			logger.Int64("trackId", trackID),
			logger.Int64("references", pruned))
		return repository.NewGormTrackRepository(tx).DeleteTrack(ctx, trackID)
	})
	if err != nil {
		return track, err
	}

	s.deleteMedia(ctx, "[DeleteTrack]", track.AudioFile)
	s.deleteMedia(ctx, "[DeleteTrack]", track.CoverImage)
	return track, nil
}

// deleteMedia logs and swallows failures.
func (s *Service) deleteMedia(ctx context.Context, tag, ref string) {
	if ref == "" {
		return
	}
	ctx, cancel := s.detached(ctx)
	defer cancel()

	deleted, err := s.media.DeleteURL(ctx, ref)
	if err != nil {
		logger.Error(tag+" failed to delete media", logger.String("ref", ref), logger.ErrorField(err))
		return
	}
	if deleted {
		logger.Debug(tag+" deleted media", logger.String("ref", ref))
	}
}

// UploadInput 上传表单
type UploadInput struct {
	Title       string
	Genre       string
	Description string
	Tags        string
	Audio       *storage.Upload
	Cover       *storage.Upload
}

// checkLengths rejects values that do not fit their columns.
func checkLengths(title, genre string, tags []string) error {
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return apperr.Validation(fmt.Sprintf("Title must be at most %d characters", model.MaxTitleLength))
	}
	if utf8.RuneCountInString(genre) > model.MaxGenreLength {
		return apperr.Validation(fmt.Sprintf("Genre must be at most %d characters", model.MaxGenreLength))
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > model.MaxTagLength {
			return apperr.Validation(fmt.Sprintf("Tags must be at most %d characters each", model.MaxTagLength))
		}
	}
	return nil
}

// UploadTrack stores the files and creates the track owned by actor.
// Stored objects are removed again if a later step fails.
func (s *Service) UploadTrack(ctx context.Context, actor *model.User, in UploadInput) (*model.Track, error) {
	if actor == nil {
		return nil, apperr.ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	if in.Audio == nil {
		return nil, apperr.Validation("Audio file is required")
	}
	if err := storage.KindAudio.Validate(*in.Audio, 0); err != nil {
		return nil, err
	}
	if in.Cover != nil {
		if err := storage.KindCover.Validate(*in.Cover, 0); err != nil {
			return nil, err
		}
	}

	genre := strings.TrimSpace(in.Genre)
	if genre == "" {
		genre = model.GenreAny
	}
	tags := model.ParseTags(in.Tags)
	if err := checkLengths(title, genre, tags); err != nil {
		return nil, err
	}

	var stored []string
	cleanup := func() {
		for _, ref := range stored {
			s.deleteMedia(ctx, "[Upload]", ref)
		}
	}

	mctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
	defer cancel()

	audioRef, err := s.media.Save(mctx, storage.KindAudio, *in.Audio)
	if err != nil {
		return nil, err
	}
	stored = append(stored, audioRef)

	coverRef := model.DefaultTrackCover
	if in.Cover != nil {
		coverRef, err = s.media.Save(mctx, storage.KindCover, *in.Cover)
		if err != nil {
			cleanup()
			return nil, err
		}
		stored = append(stored, coverRef)
	}

	track := &model.Track{
		Title:       title,
		ArtistName:  actor.Username,
		Genre:       genre,
		Description: in.Description,
		AudioFile:   audioRef,
		CoverImage:  coverRef,
		UploadedAt:  time.Now(),
	}
	track.SetTags(tags)

	if err := repository.NewGormTrackRepository(s.db).CreateTrack(ctx, track); err != nil {
		cleanup()
		return nil, err
	}
	return track, nil
}

// GetEditable loads a track the actor is allowed to edit.
func (s *Service) GetEditable(ctx context.Context, actor *model.User, trackID int64) (*model.Track, error) {
	track, err := repository.NewGormTrackRepository(s.db).GetTrackByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, track); err != nil {
		return track, err
	}
	return track, nil
}

// EditInput 编辑表单。Title 和 Genre 为空时保留原值
type EditInput struct {
	Title       string
	Genre       string
	Description string
	Tags        string
	Cover       *storage.Upload
}

// UpdateTrack applies the edit after checking ownership. A replaced hosted cover is
// deleted once the record is saved; a new cover is deleted if the save fails.
func (s *Service) UpdateTrack(ctx context.Context, actor *model.User, trackID int64, in EditInput) (*model.Track, error) {
	track, err := s.GetEditable(ctx, actor, trackID)
	if err != nil {
		return track, err
	}
	if in.Cover != nil {
		if err := storage.KindCover.Validate(*in.Cover, 0); err != nil {
			return track, err
		}
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		track.Title = title
	}
	if genre := strings.TrimSpace(in.Genre); genre != "" {
		track.Genre = genre
	}
	track.Description = in.Description
	tags := model.ParseTags(in.Tags)
	if err := checkLengths(track.Title, track.Genre, tags); err != nil {
		return track, err
	}
	track.SetTags(tags)

	var oldCover, newCover string
	if in.Cover != nil {
		mctx, cancel := context.WithTimeout(ctx, s.mediaTimeout)
		newCover, err = s.media.Save(mctx, storage.KindCover, *in.Cover)
		cancel()
		if err != nil {
			return track, err
		}
		oldCover = track.CoverImage
		track.CoverImage = newCover
	}

	if err := repository.NewGormTrackRepository(s.db).UpdateTrack(ctx, track); err != nil {
		if newCover != "" {
			s.deleteMedia(ctx, "[EditTrack]", newCover)
		}
		return track, err
	}

	if oldCover != "" {
		s.deleteMedia(ctx, "[EditTrack]", oldCover)
	}
	return track, nil
}
