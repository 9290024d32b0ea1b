package model

import "time"

const (
	// FavoritesPlaylistName 每个用户注册时自动创建的收藏歌单
	FavoritesPlaylistName        = "Favorites"
	FavoritesPlaylistDescription = "Your favorite tracks live here"
	DefaultPlaylistCover         = "/img/music.jpg"
)

// User represents a registered account.
type User struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string     `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"` // Not exposed in API responses
	IsAdmin      bool       `json:"isAdmin" gorm:"not null;default:false"`
	Playlists    []Playlist `json:"playlists" gorm:"foreignKey:UserID"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// NewUser builds a user with the Favorites playlist attached, ready to be created.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Playlists: []Playlist{{
			Name:        FavoritesPlaylistName,
			Description: FavoritesPlaylistDescription,
			CoverImage:  DefaultPlaylistCover,
		}},
	}
}

// Favorites returns the user's Favorites playlist, or nil when it was never created.
// Playlists must be loaded.
func (u *User) Favorites() *Playlist {
	if u == nil {
		return nil
	}
	for i := range u.Playlists {
		if u.Playlists[i].Name == FavoritesPlaylistName {
			return &u.Playlists[i]
		}
	}
	return nil
}

// HasFavorited reports whether trackID is in the Favorites playlist.
func (u *User) HasFavorited(trackID int64) bool {
	fav := u.Favorites()
	return fav != nil && fav.Contains(trackID)
}

// AccountAgeDays returns whole days since the account was created.
func (u *User) AccountAgeDays(now time.Time) int {
	if now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt) / (24 * time.Hour))
}

// Playlist 用户歌单，歌曲按 Position 排序
type Playlist struct {
	ID          int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64          `json:"userId" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	Description string         `json:"description" gorm:"size:500"`
	CoverImage  string         `json:"coverImage" gorm:"size:767"`
	Songs       []PlaylistSong `json:"songs" gorm:"foreignKey:PlaylistID"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// TableName 指定表名
func (Playlist) TableName() string {
	return "playlists"
}

// Contains reports whether trackID is referenced by the playlist.
func (p *Playlist) Contains(trackID int64) bool {
	for _, s := range p.Songs {
		if s.TrackID == trackID {
			return true
		}
	}
	return false
}

// TrackIDs returns the referenced track ids in playlist order.
func (p *Playlist) TrackIDs() []int64 {
	ids := make([]int64, 0, len(p.Songs))
	for _, s := range p.Songs {
		ids = append(ids, s.TrackID)
	}
	return ids
}

// PlaylistSong is a soft reference from a playlist to a track.
// There is no foreign key on TrackID; track deletion prunes these rows explicitly.
type PlaylistSong struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PlaylistID int64     `json:"playlistId" gorm:"uniqueIndex:idx_playlist_track;not null"`
	TrackID    int64     `json:"trackId" gorm:"uniqueIndex:idx_playlist_track;index;not null"`
	Position   int       `json:"position" gorm:"not null;default:0"`
	AddedAt    time.Time `json:"addedAt" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PlaylistSong) TableName() string {
	return "playlist_songs"
}
