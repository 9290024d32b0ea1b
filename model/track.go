package model

import (
	"strings"
	"time"
)

const (
	// GenreAny 不限流派
	GenreAny          = "any"
	DefaultTrackCover = "/img/Control-V.png"

	// 与列宽一致，按字符计
	MaxTitleLength = 255
	MaxGenreLength = 100
	MaxTagLength   = 100
)

// Track represents an uploaded audio item.
// ArtistName is a copy of the uploader's username, not a foreign key.
type Track struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title          string     `json:"title" gorm:"size:255;not null"`
	ArtistName     string     `json:"artistName" gorm:"size:100;index;not null"`
	Genre          string     `json:"genre" gorm:"size:100;index;not null;default:'any'"`
	Description    string     `json:"description" gorm:"type:text"`
	AudioFile      string     `json:"audioFile" gorm:"size:767;not null"`
	CoverImage     string     `json:"coverImage" gorm:"size:767"`
	FavoritesCount int64      `json:"favoritesCount" gorm:"not null;default:0"`
	UploadedAt     time.Time  `json:"uploadedAt" gorm:"index"`
	Tags           []TrackTag `json:"tags" gorm:"foreignKey:TrackID"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// TagNames returns the tag words in insertion order.
func (t *Track) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Tag)
	}
	return names
}

// SetTags replaces the tag set with already-normalized words.
func (t *Track) SetTags(words []string) {
	t.Tags = make([]TrackTag, 0, len(words))
	for _, w := range words {
		t.Tags = append(t.Tags, TrackTag{TrackID: t.ID, Tag: w})
	}
}

// TrackTag 歌曲标签（小写单词）
type TrackTag struct {
	ID      int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	TrackID int64  `json:"-" gorm:"uniqueIndex:idx_track_tag;not null"`
	Tag     string `json:"tag" gorm:"size:100;uniqueIndex:idx_track_tag;index;not null"`
}

// TableName 指定表名
func (TrackTag) TableName() string {
	return "track_tags"
}

// ParseTags splits free text into lower-cased, de-duplicated words.
func ParseTags(raw string) []string {
	fields := strings.Fields(raw)
	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.TrimSpace(f))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
