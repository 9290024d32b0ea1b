package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"dabeat/db"
	"dabeat/logger"
	"dabeat/storage"

	"github.com/gorilla/mux"
)

// MediaHandler 代理对象存储中的音频与封面
func (h *Handler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.MediaTimeout)
	defer cancel()

	obj, err := h.media.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("[Media] 读取对象失败", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "Storage unavailable", http.StatusBadGateway)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", detectContentType(key, obj.Info.ContentType))
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 对象 key 不会复用
	if obj.Info.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(obj.Info.ETag))
	}

	// 可 seek 的对象支持 Range，音频拖动进度需要
	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(key), obj.Info.LastModified, rs)
		return
	}

	if obj.Info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Info.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		logger.Error("[Media] 发送对象失败", logger.String("key", key), logger.ErrorField(err))
	}
}

// detectContentType prefers the stored type and falls back to the extension.
func detectContentType(key, stored string) string {
	if stored != "" {
		return stored
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// HealthHandler reports database and Redis reachability.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{"db": "ok", "redis": "ok"}
	code := http.StatusOK
	if err := db.Ping(ctx, h.db); err != nil {
		status["db"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := db.TestRedis(ctx, h.redis); err != nil {
		status["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if code != http.StatusOK {
		logger.Warn("[Health] 依赖不可用", logger.Any("status", status))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
