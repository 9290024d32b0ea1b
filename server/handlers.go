package server

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dabeat/config"
	"dabeat/core/auth"
	"dabeat/core/catalog"
	"dabeat/core/library"
	"dabeat/logger"
	"dabeat/model"
	"dabeat/repository"
	"dabeat/storage"
	"dabeat/web"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"gorm.io/gorm"
)

// Handler 处理所有页面请求
type Handler struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *redis.Client
	sessions sessions.Store
	views    *web.Renderer
	media    *storage.Host

	users    repository.UserRepository
	tracks   repository.TrackRepository
	blocks   repository.BlockRepository
	accounts *auth.Service
	catalog  *catalog.Service
	library  *library.Service

	now func() time.Time
}

// NewHandler wires the repositories and services over the given backends.
func NewHandler(
	cfg *config.Config,
	gdb *gorm.DB,
	rdb *redis.Client,
	store sessions.Store,
	views *web.Renderer,
	media *storage.Host,
) *Handler {
	users := repository.NewGormUserRepository(gdb)
	tracks := repository.NewGormTrackRepository(gdb)

	return &Handler{
		cfg:      cfg,
		db:       gdb,
		redis:    rdb,
		sessions: store,
		views:    views,
		media:    media,
		users:    users,
		tracks:   tracks,
		blocks:   repository.NewGormBlockRepository(gdb),
		accounts: auth.NewService(users),
		catalog:  catalog.NewService(tracks),
		library:  library.NewService(gdb, media, cfg.MediaTimeout),
		now:      time.Now,
	}
}

// render executes a page into a buffer first so a template failure still yields a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, status int, data interface{}) {
	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, data); err != nil {
		logger.Error("[Render] 页面渲染失败",
			logger.String("page", name),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError shows the generic error page.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, "error", status, errorView{User: viewerFrom(r), Message: msg})
}

// redirectWith redirects to target with one flash query parameter.
func redirectWith(w http.ResponseWriter, r *http.Request, target, key, msg string) {
	if msg != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + key + "=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func songPath(id int64) string {
	return "/song/" + strconv.FormatInt(id, 10)
}

func profilePath(username string) string {
	return "/profile/" + url.PathEscape(username)
}

// formUpload reads an optional file field. A missing field yields nil.
func formUpload(r *http.Request, field string) (*storage.Upload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	if header.Size == 0 && header.Filename == "" {
		file.Close()
		return nil, func() {}, nil
	}
	up := &storage.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return up, func() { file.Close() }, nil
}

// parseMultipart bounds the request body and parses the form.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := h.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = config.DefaultMaxUploadBytes
	}
	// audio + cover + form fields
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+1<<20)
	err := r.ParseMultipartForm(32 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// cleanupForm removes the temp files of a parsed multipart form.
func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// previewUser hides the admin flag on a copy of user.
func previewUser(user *model.User) *model.User {
	if user == nil {
		return nil
	}
	cp := *user
	cp.IsAdmin = false
	return &cp
}
