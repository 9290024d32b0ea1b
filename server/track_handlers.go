package server

import (
	"errors"
	"net/http"

	"dabeat/core/apperr"
	"dabeat/core/catalog"
	"dabeat/core/library"
	"dabeat/logger"
)

// DashboardHandler lists the catalog with search, genre, sort, favorites and paging.
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	q := r.URL.Query()
	params := catalog.ParseParams(q)

	page, err := h.catalog.Browse(r.Context(), params, viewer)
	if err != nil {
		logger.Error("[Dashboard] 获取歌曲列表失败", logger.ErrorField(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	pageUser := viewer
	preview := false
	if viewer != nil && viewer.IsAdmin && q.Get("previewNormal") != "" {
		pageUser = previewUser(viewer)
		preview = true
	}

	h.render(w, r, "dashboard", http.StatusOK, dashboardView{
		User:          pageUser,
		Tracks:        page.Tracks,
		CurrentPage:   params.Page,
		TotalPages:    page.TotalPages,
		Search:        params.Search,
		Genre:         params.Genre,
		Sort:          string(params.Sort),
		ShowFav:       params.FavoritesOnly,
		PreviewNormal: preview,
		Error:         q.Get("error"),
		Message:       q.Get("success"),
		Error2:        q.Get("error2"),
		Message2:      q.Get("success2"),
		Blocks:        h.renderBlocks(r, pageUser),
	})
}

// UploadPage 上传页
func (h *Handler) UploadPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "upload", http.StatusOK, uploadView{User: viewerFrom(r)})
}

// UploadTrackHandler handles the multipart upload form.
// Expected fields: title, genre, description, tags, audioFile and optional coverImage.
func (h *Handler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	fail := func(status int, msg string) {
		h.render(w, r, "upload", status, uploadView{User: viewer, Error: msg})
	}

	if err := h.parseMultipart(w, r); err != nil {
		logger.Warn("[Upload] 解析表单失败", logger.ErrorField(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		fail(http.StatusBadRequest, "Upload failed. Please try again.")
		return
	}
	defer cleanupForm(r)

	audio, closeAudio, err := formUpload(r, "audioFile")
	if err != nil {
		logger.Warn("[Upload] 读取音频文件失败", logger.ErrorField(err))
		fail(http.StatusBadRequest, "Upload failed. Please try again.")
		return
	}
	defer closeAudio()
	cover, closeCover, err := formUpload(r, "coverImage")
	if err != nil {
		logger.Warn("[Upload] 读取封面失败", logger.ErrorField(err))
		fail(http.StatusBadRequest, "Upload failed. Please try again.")
		return
	}
	defer closeCover()

	track, err := h.library.UploadTrack(r.Context(), viewer, library.UploadInput{
		Title:       r.FormValue("title"),
		Genre:       r.FormValue("genre"),
		Description: r.FormValue("description"),
		Tags:        r.FormValue("tags"),
		Audio:       audio,
		Cover:       cover,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			fail(http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("[Upload] 上传歌曲失败",
			logger.String("username", viewer.Username),
			logger.ErrorField(err))
		fail(http.StatusInternalServerError, "Upload failed. Please try again.")
		return
	}

	logger.Info("[Upload] 上传成功",
		logger.Int64("trackId", track.ID),
		logger.String("username", viewer.Username))
	redirectWith(w, r, "/dashboard", "success", "Song uploaded successfully")
}

// SongPage shows one track.
func (h *Handler) SongPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Redirect(w, r, "/song-invalid", http.StatusFound)
		return
	}

	track, err := h.tracks.GetTrackByID(r.Context(), id)
	if err != nil {
		logger.Error("[Song] 查询歌曲失败", logger.Int64("trackId", id), logger.ErrorField(err))
		http.Redirect(w, r, "/song-invalid", http.StatusFound)
		return
	}
	if track == nil {
		http.Redirect(w, r, "/song-invalid", http.StatusFound)
		return
	}

	authorExists, err := h.users.ExistsByUsername(r.Context(), track.ArtistName)
	if err != nil {
		logger.Warn("[Song] 查询作者失败", logger.String("artist", track.ArtistName), logger.ErrorField(err))
	}

	viewer := viewerFrom(r)
	q := r.URL.Query()
	h.render(w, r, "song", http.StatusOK, songView{
		User:         viewer,
		Song:         track,
		IsFavorited:  viewer.HasFavorited(track.ID),
		AuthorExists: authorExists,
		CanEdit:      library.CanMutate(viewer, track),
		Error:        q.Get("error"),
		Success:      q.Get("success"),
	})
}

// SongInvalidPage 歌曲不存在
func (h *Handler) SongInvalidPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "song-invalid", http.StatusNotFound, homeView{User: viewerFrom(r)})
}

// ToggleFavoriteHandler adds or removes the track from the viewer's Favorites.
func (h *Handler) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Redirect(w, r, "/song-invalid", http.StatusFound)
		return
	}
	viewer := viewerFrom(r)

	added, err := h.library.ToggleFavorite(r.Context(), viewer.ID, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.Redirect(w, r, "/song-invalid", http.StatusFound)
			return
		}
		logger.Error("[Favorite] 切换收藏失败",
			logger.Int64("trackId", id),
			logger.Int64("userId", viewer.ID),
			logger.ErrorField(err))
		redirectWith(w, r, songPath(id), "error", "Favorite failed")
		return
	}

	logger.Debug("[Favorite] 切换收藏",
		logger.Int64("trackId", id),
		logger.Int64("userId", viewer.ID),
		logger.Bool("added", added))
	http.Redirect(w, r, songPath(id), http.StatusFound)
}

// EditPage shows the edit form to the owner or an admin.
func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error", "Song not found")
		return
	}
	viewer := viewerFrom(r)

	track, err := h.library.GetEditable(r.Context(), viewer, id)
	switch {
	case err == nil:
		h.render(w, r, "edit", http.StatusOK, editView{User: viewer, Song: track})
	case errors.Is(err, apperr.ErrNotFound):
		redirectWith(w, r, "/dashboard", "error", "Song not found")
	case errors.Is(err, apperr.ErrForbidden):
		redirectWith(w, r, "/dashboard", "error", "You can only edit your own songs")
	default:
		logger.Error("[EditTrack] 查询歌曲失败", logger.Int64("trackId", id), logger.ErrorField(err))
		redirectWith(w, r, "/dashboard", "error", "Song not found")
	}
}

// EditTrackHandler applies the edit form.
func (h *Handler) EditTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error", "Song not found")
		return
	}
	viewer := viewerFrom(r)

	if err := h.parseMultipart(w, r); err != nil {
		logger.Warn("[EditTrack] 解析表单失败", logger.ErrorField(err))
		h.reRenderEdit(w, r, id, "Failed to update song. Please try again.")
		return
	}
	defer cleanupForm(r)

	cover, closeCover, err := formUpload(r, "coverImage")
	if err != nil {
		logger.Warn("[EditTrack] 读取封面失败", logger.ErrorField(err))
		h.reRenderEdit(w, r, id, "Failed to update song. Please try again.")
		return
	}
	defer closeCover()

	_, err = h.library.UpdateTrack(r.Context(), viewer, id, library.EditInput{
		Title:       r.FormValue("title"),
		Genre:       r.FormValue("genre"),
		Description: r.FormValue("description"),
		Tags:        r.FormValue("tags"),
		Cover:       cover,
	})
	switch {
	case err == nil:
		logger.Info("[EditTrack] 更新成功", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, songPath(id), "success", "Song updated successfully")
	case errors.Is(err, apperr.ErrNotFound):
		redirectWith(w, r, "/dashboard", "error", "Song not found")
	case errors.Is(err, apperr.ErrForbidden):
		logger.Warn("[EditTrack] 无权编辑", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, "/dashboard", "error", "Unauthorized")
	case errors.Is(err, apperr.ErrValidation):
		h.reRenderEdit(w, r, id, err.Error())
	default:
		logger.Error("[EditTrack] 更新歌曲失败", logger.Int64("trackId", id), logger.ErrorField(err))
		h.reRenderEdit(w, r, id, "Failed to update song. Please try again.")
	}
}

// reRenderEdit shows the edit form again with the stored values and msg.
func (h *Handler) reRenderEdit(w http.ResponseWriter, r *http.Request, id int64, msg string) {
	track, err := h.tracks.GetTrackByID(r.Context(), id)
	if err != nil || track == nil {
		redirectWith(w, r, "/dashboard", "error", "Song not found")
		return
	}
	h.render(w, r, "edit", http.StatusBadRequest, editView{User: viewerFrom(r), Song: track, Error: msg})
}

// DeleteTrackHandler deletes from the song page and returns to the dashboard.
func (h *Handler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error", "Music not found")
		return
	}
	viewer := viewerFrom(r)

	_, err := h.library.DeleteTrack(r.Context(), viewer, id)
	switch {
	case err == nil:
		logger.Info("[DeleteTrack] 删除成功", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, "/dashboard", "success", "Song deleted successfully")
	case errors.Is(err, apperr.ErrNotFound):
		redirectWith(w, r, "/dashboard", "error", "Music not found")
	case errors.Is(err, apperr.ErrForbidden):
		logger.Warn("[DeleteTrack] 无权删除", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, "/dashboard", "error", "No permission")
	default:
		logger.Error("[DeleteTrack] 删除失败", logger.Int64("trackId", id), logger.ErrorField(err))
		redirectWith(w, r, "/dashboard", "error", "Delete failed")
	}
}

// DeleteTrackFromProfileHandler deletes from a profile page and returns to it.
func (h *Handler) DeleteTrackFromProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		redirectWith(w, r, "/dashboard", "error", "Music not found")
		return
	}
	viewer := viewerFrom(r)

	track, err := h.library.DeleteTrack(r.Context(), viewer, id)
	if errors.Is(err, apperr.ErrNotFound) || (err != nil && track == nil) {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.Error("[DeleteTrack] 查询歌曲失败", logger.Int64("trackId", id), logger.ErrorField(err))
		}
		redirectWith(w, r, "/dashboard", "error", "Music not found")
		return
	}

	back := profilePath(track.ArtistName)
	switch {
	case err == nil:
		logger.Info("[DeleteTrack] 删除成功", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, back, "success", "Song deleted successfully")
	case errors.Is(err, apperr.ErrForbidden):
		logger.Warn("[DeleteTrack] 无权删除", logger.Int64("trackId", id), logger.String("username", viewer.Username))
		redirectWith(w, r, back, "error", "No permission")
	default:
		logger.Error("[DeleteTrack] 删除失败", logger.Int64("trackId", id), logger.ErrorField(err))
		redirectWith(w, r, back, "error", "Delete failed")
	}
}

// trackCount 全部歌曲数量，供内容块模板使用
func (h *Handler) trackCount(r *http.Request) int64 {
	n, err := h.tracks.Count(r.Context(), catalog.Filter{})
	if err != nil {
		logger.Warn("[Blocks] 统计歌曲数量失败", logger.ErrorField(err))
		return 0
	}
	return n
}
