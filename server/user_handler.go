package server

import (
	"net/http"

	"dabeat/logger"
	"dabeat/model"

	"github.com/gorilla/mux"
)

// MyProfileHandler 跳转到当前用户的主页
func (h *Handler) MyProfileHandler(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	if viewer == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, profilePath(viewer.Username), http.StatusFound)
}

// ProfileHandler shows a user's uploads and favorites.
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	ctx := r.Context()

	profile, err := h.users.GetUserByUsername(ctx, username)
	if err != nil {
		logger.Error("[Profile] 查询用户失败", logger.String("username", username), logger.ErrorField(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if profile == nil {
		logger.Debug("[Profile] 用户不存在", logger.String("username", username))
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	songs, err := h.tracks.GetTracksByArtist(ctx, profile.Username)
	if err != nil {
		logger.Error("[Profile] 查询上传歌曲失败", logger.String("username", username), logger.ErrorField(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	favSongs := []*model.Track{}
	if fav := profile.Favorites(); fav != nil {
		favSongs, err = h.tracks.GetTracksByIDs(ctx, fav.TrackIDs())
		if err != nil {
			logger.Error("[Profile] 查询收藏歌曲失败", logger.String("username", username), logger.ErrorField(err))
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}

	viewer := viewerFrom(r)
	q := r.URL.Query()
	h.render(w, r, "profile", http.StatusOK, profileView{
		User:           viewer,
		Profile:        profile,
		Songs:          songs,
		FavSongs:       favSongs,
		AccountAgeDays: profile.AccountAgeDays(h.now()),
		CanDelete:      viewer != nil && (viewer.Username == profile.Username || viewer.IsAdmin),
		Message:        q.Get("message"),
		Success:        q.Get("success"),
		Error:          q.Get("error"),
	})
}
