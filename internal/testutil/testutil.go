// Package testutil provides in-memory backends for package tests.
package testutil

import (
	"testing"
	"time"

	"dabeat/config"
	"dabeat/db"
	"dabeat/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory sqlite database that is closed with the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(&config.Config{DBDriver: "sqlite", DBPath: ":memory:", DBLogLevel: "silent"})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// NewRedis starts a miniredis server and a client pointed at it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// CreateUser inserts a user with its Favorites playlist.
func CreateUser(t testing.TB, gdb *gorm.DB, username string, admin bool) *model.User {
	t.Helper()

	u := model.NewUser(username, username+"@example.com", "hash")
	u.IsAdmin = admin
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

// CreateTrack inserts a track owned by artist; zero fields get defaults.
func CreateTrack(t testing.TB, gdb *gorm.DB, artist, title string, tags ...string) *model.Track {
	t.Helper()

	tr := &model.Track{
		Title:      title,
		ArtistName: artist,
		Genre:      model.GenreAny,
		AudioFile:  "/media/dabeat/audio/" + title + ".mp3",
		CoverImage: model.DefaultTrackCover,
		UploadedAt: time.Now(),
	}
	tr.SetTags(tags)
	if err := gdb.Create(tr).Error; err != nil {
		t.Fatalf("failed to create track %s: %v", title, err)
	}
	return tr
}
