package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dabeat/config"
	"dabeat/db"
	"dabeat/logger"
	"dabeat/session"
	"dabeat/storage"
	"dabeat/web"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// NewRouter registers every route of the application on a gorilla/mux router.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	router.Use(h.RecoverMiddleware)
	router.Use(h.SessionMiddleware)

	// 账户
	router.HandleFunc("/", h.LoginPage).Methods(http.MethodGet)
	router.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet)
	router.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/register", h.RegisterPage).Methods(http.MethodGet)
	router.HandleFunc("/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/home", h.HomePage).Methods(http.MethodGet)

	// 曲库
	router.HandleFunc("/dashboard", h.DashboardHandler).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.RequireAuth(h.UploadPage)).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.RequireAuth(h.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/song-invalid", h.SongInvalidPage).Methods(http.MethodGet)
	router.HandleFunc("/song/{id}", h.SongPage).Methods(http.MethodGet)
	router.HandleFunc("/song/{id}/favorite", h.RequireAuth(h.ToggleFavoriteHandler)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/edit-song/{id}", h.RequireAuth(h.EditPage)).Methods(http.MethodGet)
	router.HandleFunc("/edit-song/{id}", h.RequireAuth(h.EditTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/delete-song/{id}", h.RequireAuth(h.DeleteTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/delete-song-from-profile/{id}", h.RequireAuth(h.DeleteTrackFromProfileHandler)).Methods(http.MethodPost)

	// 用户主页
	router.HandleFunc("/profile", h.MyProfileHandler).Methods(http.MethodGet)
	router.HandleFunc("/profile/{username}", h.ProfileHandler).Methods(http.MethodGet)

	// 管理员内容块
	RegisterBlockRoutes(router, h)

	// 媒体与静态资源
	router.HandleFunc("/media/{key:.+}", h.MediaHandler).Methods(http.MethodGet, http.MethodHead)
	static := http.FileServer(http.FS(web.Static()))
	router.PathPrefix("/img/").Handler(static)
	router.PathPrefix("/assets/").Handler(http.StripPrefix("/assets", static))

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.renderError(w, r, http.StatusNotFound, "Page not found")
	})

	return router
}

// RegisterBlockRoutes 注册管理员内容块路由
func RegisterBlockRoutes(router *mux.Router, h *Handler) {
	admin := router.PathPrefix("/admin/blocks").Subrouter()
	admin.HandleFunc("/create", h.RequireAdmin(h.CreateBlockHandler)).Methods(http.MethodPost)
	admin.HandleFunc("/edit/{id}", h.RequireAdmin(h.UpdateBlockHandler)).Methods(http.MethodPost)
	admin.HandleFunc("/delete/{id}", h.RequireAdmin(h.DeleteBlockHandler)).Methods(http.MethodPost)
}

// NewMediaStore picks MinIO when an endpoint is configured, else the in-memory store.
func NewMediaStore(ctx context.Context, cfg *config.Config) (storage.MediaStore, error) {
	if !cfg.MinioEnabled() {
		logger.Warn("MINIO_ENDPOINT 未配置，使用内存媒体存储（重启后文件丢失）")
		return storage.NewMemoryMediaStore(), nil
	}
	store, err := storage.NewMinioMediaStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Start connects the backends and serves HTTP until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if cfg.SessionSecret == "" {
		// 重启后所有会话失效
		logger.Warn("SESSION_SECRET 未配置，使用随机密钥")
		cfg.SessionSecret = uuid.NewString()
	}

	gdb, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	}()
	if err := db.AutoMigrate(gdb); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	rdb, err := db.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("Successfully connected to Redis", logger.String("addr", cfg.RedisAddr()))

	ctx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	store, err := NewMediaStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}

	views, err := web.NewRenderer(cfg.TemplateDir)
	if err != nil {
		return err
	}
	if err := views.Watch(ctx); err != nil {
		logger.Warn("模板热加载不可用", logger.ErrorField(err))
	}

	sessions := session.NewRedisStore(rdb, []byte(cfg.SessionSecret), cfg.SessionMaxAge)
	media := storage.NewHost(store, cfg.MediaPublicBase, cfg.MaxUploadBytes)
	h := NewHandler(cfg, gdb, rdb, sessions, views, media)

	// 设置服务器超时
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
