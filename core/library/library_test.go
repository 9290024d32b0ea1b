package library

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"dabeat/core/apperr"
	"dabeat/core/catalog"
	"dabeat/internal/testutil"
	"dabeat/model"
	"dabeat/repository"
	"dabeat/storage"

	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	store *storage.MemoryMediaStore
	host  *storage.Host
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	store := storage.NewMemoryMediaStore()
	host := storage.NewHost(store, "/media", 1<<20)
	return &fixture{db: gdb, store: store, host: host, svc: NewService(gdb, host, 0)}
}

func (f *fixture) track(t *testing.T, id int64) *model.Track {
	t.Helper()
	tr, err := repository.NewGormTrackRepository(f.db).GetTrackByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func (f *fixture) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := repository.NewGormUserRepository(f.db).GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func audio(name string) *storage.Upload {
	return &storage.Upload{Filename: name, ContentType: "audio/mpeg", Size: 4, Body: strings.NewReader("ID3!")}
}

func cover(name string) *storage.Upload {
	return &storage.Upload{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("PNG")}
}

func TestCanMutate(t *testing.T) {
	track := &model.Track{ArtistName: "alice"}
	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"Owner", &model.User{Username: "alice"}, true},
		{"Admin", &model.User{Username: "root", IsAdmin: true}, true},
		{"Other", &model.User{Username: "bob"}, false},
		{"CaseSensitive", &model.User{Username: "Alice"}, false},
		{"Anonymous", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanMutate(tt.user, track); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if err := Authorize(&model.User{Username: "bob"}, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing track should be not found, got %v", err)
	}
	if err := Authorize(&model.User{Username: "bob"}, track); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("foreign track should be forbidden, got %v", err)
	}
}

func TestToggleFavoriteTwiceRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	tr := testutil.CreateTrack(t, f.db, "alice", "Song")

	on, err := f.svc.ToggleFavorite(ctx, bob.ID, tr.ID)
	if err != nil || !on {
		t.Fatalf("first toggle: %v %v", on, err)
	}
	if got := f.track(t, tr.ID).FavoritesCount; got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if !f.user(t, bob.ID).HasFavorited(tr.ID) {
		t.Error("expected membership after first toggle")
	}

	on, err = f.svc.ToggleFavorite(ctx, bob.ID, tr.ID)
	if err != nil || on {
		t.Fatalf("second toggle: %v %v", on, err)
	}
	if got := f.track(t, tr.ID).FavoritesCount; got != 0 {
		t.Errorf("expected count 0, got %d", got)
	}
	if f.user(t, bob.ID).HasFavorited(tr.ID) {
		t.Error("expected no membership after second toggle")
	}
}

func TestToggleFavoriteNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	tr := testutil.CreateTrack(t, f.db, "alice", "Song")

	// membership without a matching count
	if err := repository.NewGormPlaylistRepository(f.db).AddSong(ctx, bob.Favorites().ID, tr.ID); err != nil {
		t.Fatal(err)
	}

	on, err := f.svc.ToggleFavorite(ctx, bob.ID, tr.ID)
	if err != nil || on {
		t.Fatalf("toggle: %v %v", on, err)
	}
	if got := f.track(t, tr.ID).FavoritesCount; got != 0 {
		t.Errorf("expected count floored at 0, got %d", got)
	}
}

func TestRemoveFavoriteAlreadyGone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	tr := testutil.CreateTrack(t, f.db, "alice", "Song")

	playlists := repository.NewGormPlaylistRepository(f.db)
	tracks := repository.NewGormTrackRepository(f.db)
	if err := playlists.AddSong(ctx, bob.Favorites().ID, tr.ID); err != nil {
		t.Fatal(err)
	}
	if err := tracks.AdjustFavoritesCount(ctx, tr.ID, 1); err != nil {
		t.Fatal(err)
	}

	// a concurrent toggle removed the row first
	if removed, err := playlists.RemoveSong(ctx, bob.Favorites().ID, tr.ID); err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	if err := removeFavorite(ctx, playlists, tracks, bob.Favorites().ID, tr.ID); err != nil {
		t.Fatalf("removeFavorite failed: %v", err)
	}
	if got := f.track(t, tr.ID).FavoritesCount; got != 1 {
		t.Errorf("expected count to stay 1, got %d", got)
	}
}

func TestToggleFavoriteErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	tr := testutil.CreateTrack(t, f.db, "alice", "Song")

	if _, err := f.svc.ToggleFavorite(ctx, bob.ID, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing track, got %v", err)
	}
	if _, err := f.svc.ToggleFavorite(ctx, 9999, tr.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing user, got %v", err)
	}

	if err := f.db.Where("user_id = ?", bob.ID).Delete(&model.Playlist{}).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ToggleFavorite(ctx, bob.ID, tr.ID); !errors.Is(err, apperr.ErrNoFavoritesPlaylist) {
		t.Errorf("expected ErrNoFavoritesPlaylist, got %v", err)
	}
	if got := f.track(t, tr.ID).FavoritesCount; got != 0 {
		t.Errorf("failed toggle must not change the count, got %d", got)
	}
}

func TestToggleFavoriteConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	tr := testutil.CreateTrack(t, f.db, "alice", "Song")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ToggleFavorite(ctx, bob.ID, tr.ID); err != nil {
				t.Errorf("toggle failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.track(t, tr.ID).FavoritesCount; got != 0 {
		t.Errorf("expected count 0 after an even number of toggles, got %d", got)
	}
	if f.user(t, bob.ID).HasFavorited(tr.ID) {
		t.Error("expected no membership after an even number of toggles")
	}
	if n := f.svc.locks.size(); n != 0 {
		t.Errorf("expected lock table to drain, got %d entries", n)
	}
}

func TestDeleteTrackCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db, "alice", false)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	carol := testutil.CreateUser(t, f.db, "carol", false)

	tr, err := f.svc.UploadTrack(ctx, alice, UploadInput{Title: "Song", Audio: audio("a.mp3"), Cover: cover("c.png")})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	other := testutil.CreateTrack(t, f.db, "alice", "Other")
	for _, u := range []*model.User{bob, carol} {
		if _, err := f.svc.ToggleFavorite(ctx, u.ID, tr.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.ToggleFavorite(ctx, bob.ID, other.ID); err != nil {
		t.Fatal(err)
	}

	t.Run("Forbidden", func(t *testing.T) {
		_, err := f.svc.DeleteTrack(ctx, bob, tr.ID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
		if f.track(t, tr.ID) == nil {
			t.Error("track must survive a forbidden delete")
		}
	})

	t.Run("Owner", func(t *testing.T) {
		deleted, err := f.svc.DeleteTrack(ctx, alice, tr.ID)
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if deleted.ArtistName != "alice" {
			t.Errorf("expected deleted track to be returned, got %+v", deleted)
		}
		if f.track(t, tr.ID) != nil {
			t.Error("track record still present")
		}
		for _, u := range []*model.User{bob, carol} {
			if f.user(t, u.ID).HasFavorited(tr.ID) {
				t.Errorf("%s still references the deleted track", u.Username)
			}
		}
		if !f.user(t, bob.ID).HasFavorited(other.ID) {
			t.Error("unrelated favorites must be kept")
		}
		if f.store.Len() != 0 {
			t.Errorf("expected hosted media to be deleted, %d objects left", f.store.Len())
		}
	})

	t.Run("ToggleAfterDelete", func(t *testing.T) {
		if _, err := f.svc.ToggleFavorite(ctx, bob.ID, tr.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := f.svc.DeleteTrack(ctx, alice, tr.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestDeleteTrackMediaFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "root", true)
	alice := testutil.CreateUser(t, f.db, "alice", false)

	tr, err := f.svc.UploadTrack(ctx, alice, UploadInput{Title: "Song", Audio: audio("a.mp3")})
	if err != nil {
		t.Fatal(err)
	}

	f.store.DeleteErr = errors.New("minio down")
	if _, err := f.svc.DeleteTrack(ctx, admin, tr.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if f.track(t, tr.ID) != nil {
		t.Error("record must be deleted even when media deletion fails")
	}
}

func TestUploadTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		f := newFixture(t)
		alice := testutil.CreateUser(t, f.db, "alice", false)
		tr, err := f.svc.UploadTrack(ctx, alice, UploadInput{
			Title: " Song ", Tags: "Lo-Fi  chill lo-fi", Audio: audio("a.mp3"),
		})
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		got := f.track(t, tr.ID)
		if got.Title != "Song" || got.ArtistName != "alice" || got.Genre != model.GenreAny {
			t.Errorf("unexpected track %+v", got)
		}
		if got.CoverImage != model.DefaultTrackCover {
			t.Errorf("expected placeholder cover, got %s", got.CoverImage)
		}
		if strings.Join(got.TagNames(), ",") != "lo-fi,chill" {
			t.Errorf("unexpected tags %v", got.TagNames())
		}
		if _, ok := f.host.ObjectKeyFromURL(got.AudioFile); !ok {
			t.Errorf("audio should be hosted, got %s", got.AudioFile)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t)
		alice := testutil.CreateUser(t, f.db, "alice", false)
		for _, in := range []UploadInput{
			{Audio: audio("a.mp3")},
			{Title: "Song"},
			{Title: "Song", Audio: audio("a.wav")},
			{Title: "Song", Audio: audio("a.mp3"), Cover: cover("c.gif")},
		} {
			if _, err := f.svc.UploadTrack(ctx, alice, in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error for %+v, got %v", in, err)
			}
		}
		if f.store.Len() != 0 {
			t.Errorf("nothing should be stored, got %d objects", f.store.Len())
		}
	})

	t.Run("CleanupOnStoreFailure", func(t *testing.T) {
		f := newFixture(t)
		alice := testutil.CreateUser(t, f.db, "alice", false)
		if err := f.db.Migrator().DropTable(&model.TrackTag{}); err != nil {
			t.Fatal(err)
		}
		_, err := f.svc.UploadTrack(ctx, alice, UploadInput{
			Title: "Song", Tags: "rock", Audio: audio("a.mp3"), Cover: cover("c.png"),
		})
		if err == nil {
			t.Fatal("expected create to fail")
		}
		if f.store.Len() != 0 {
			t.Errorf("stored objects must be removed, got %d", f.store.Len())
		}
	})

	t.Run("TooLong", func(t *testing.T) {
		f := newFixture(t)
		alice := testutil.CreateUser(t, f.db, "alice", false)
		long := strings.Repeat("é", model.MaxTitleLength+1)
		for name, in := range map[string]UploadInput{
			"Title": {Title: long, Audio: audio("a.mp3")},
			"Genre": {Title: "Song", Genre: strings.Repeat("g", model.MaxGenreLength+1), Audio: audio("a.mp3")},
			"Tag":   {Title: "Song", Tags: "ok " + strings.Repeat("t", model.MaxTagLength+1), Audio: audio("a.mp3")},
		} {
			if _, err := f.svc.UploadTrack(ctx, alice, in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%s: expected validation error, got %v", name, err)
			}
		}
		if f.store.Len() != 0 {
			t.Errorf("nothing should be stored, got %d objects", f.store.Len())
		}

		fits := strings.Repeat("é", model.MaxTitleLength)
		if _, err := f.svc.UploadTrack(ctx, alice, UploadInput{Title: fits, Audio: audio("a.mp3")}); err != nil {
			t.Errorf("a title of exactly %d characters should fit: %v", model.MaxTitleLength, err)
		}
	})
}

func TestUpdateTrack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db, "alice", false)
	bob := testutil.CreateUser(t, f.db, "bob", false)

	tr, err := f.svc.UploadTrack(ctx, alice, UploadInput{
		Title: "Song", Genre: "rock", Description: "first", Tags: "old", Audio: audio("a.mp3"), Cover: cover("c.png"),
	})
	if err != nil {
		t.Fatal(err)
	}
	oldKey, _ := f.host.ObjectKeyFromURL(tr.CoverImage)

	t.Run("Forbidden", func(t *testing.T) {
		if _, err := f.svc.UpdateTrack(ctx, bob, tr.ID, EditInput{Title: "Hijack"}); !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("expected forbidden, got %v", err)
		}
		if f.track(t, tr.ID).Title != "Song" {
			t.Error("forbidden edit must not change the track")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := f.svc.UpdateTrack(ctx, alice, 9999, EditInput{}); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("KeepsEmptyTitleAndGenre", func(t *testing.T) {
		if _, err := f.svc.UpdateTrack(ctx, alice, tr.ID, EditInput{Tags: "New new"}); err != nil {
			t.Fatal(err)
		}
		got := f.track(t, tr.ID)
		if got.Title != "Song" || got.Genre != "rock" {
			t.Errorf("title and genre must be kept, got %q %q", got.Title, got.Genre)
		}
		if got.Description != "" {
			t.Errorf("description is always replaced, got %q", got.Description)
		}
		if strings.Join(got.TagNames(), ",") != "new" {
			t.Errorf("unexpected tags %v", got.TagNames())
		}
	})

	t.Run("ReplaceCover", func(t *testing.T) {
		got, err := f.svc.UpdateTrack(ctx, alice, tr.ID, EditInput{Title: "Song 2", Cover: cover("d.png")})
		if err != nil {
			t.Fatal(err)
		}
		if f.store.Has(oldKey) {
			t.Error("old cover must be deleted after the save")
		}
		newKey, ok := f.host.ObjectKeyFromURL(got.CoverImage)
		if !ok || !f.store.Has(newKey) {
			t.Errorf("new cover must be stored, got %s", got.CoverImage)
		}
		if f.track(t, tr.ID).Title != "Song 2" {
			t.Error("title not updated")
		}
	})

	t.Run("TooLong", func(t *testing.T) {
		before := f.store.Len()
		_, err := f.svc.UpdateTrack(ctx, alice, tr.ID, EditInput{
			Title: strings.Repeat("x", model.MaxTitleLength+1), Cover: cover("e.png"),
		})
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if f.track(t, tr.ID).Title != "Song 2" {
			t.Error("rejected edit must not change the track")
		}
		if f.store.Len() != before {
			t.Error("rejected edit must not store a cover")
		}
	})

	t.Run("AdminMayEdit", func(t *testing.T) {
		root := testutil.CreateUser(t, f.db, "root", true)
		if _, err := f.svc.UpdateTrack(ctx, root, tr.ID, EditInput{Genre: "jazz"}); err != nil {
			t.Fatalf("admin edit failed: %v", err)
		}
		if f.track(t, tr.ID).Genre != "jazz" {
			t.Error("genre not updated")
		}
	})
}

func TestFavoritesScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := testutil.CreateUser(t, f.db, "a", false)
	b := testutil.CreateUser(t, f.db, "b", false)
	browse := catalog.NewService(repository.NewGormTrackRepository(f.db))

	tr, err := f.svc.UploadTrack(ctx, a, UploadInput{Title: "T", Genre: "rock", Audio: audio("t.mp3")})
	if err != nil {
		t.Fatal(err)
	}

	page, err := browse.Browse(ctx, catalog.Params{Page: 1, Genre: "rock"}, f.user(t, b.ID))
	if err != nil || len(page.Tracks) != 1 || page.Tracks[0].ID != tr.ID {
		t.Fatalf("expected T in rock results, got %v %v", page, err)
	}

	if _, err := f.svc.ToggleFavorite(ctx, b.ID, tr.ID); err != nil {
		t.Fatal(err)
	}

	page, err = browse.Browse(ctx, catalog.Params{Page: 1, FavoritesOnly: true}, f.user(t, a.ID))
	if err != nil || len(page.Tracks) != 0 {
		t.Errorf("A's favorites must not contain T, got %v %v", page, err)
	}

	page, err = browse.Browse(ctx, catalog.Params{Page: 1, FavoritesOnly: true}, f.user(t, b.ID))
	if err != nil || len(page.Tracks) != 1 || page.Tracks[0].ID != tr.ID {
		t.Errorf("B's favorites must contain T, got %v %v", page, err)
	}

	if got := f.track(t, tr.ID).FavoritesCount; got != 1 {
		t.Errorf("expected favorites count 1, got %d", got)
	}
}
