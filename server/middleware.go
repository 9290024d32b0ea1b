package server

import (
	"context"
	"net/http"
	"time"

	"dabeat/logger"
	"dabeat/model"
	"dabeat/session"
)

type contextKey int

const viewerKey contextKey = iota

// viewerFrom returns the logged-in user loaded by SessionMiddleware, or nil.
func viewerFrom(r *http.Request) *model.User {
	user, _ := r.Context().Value(viewerKey).(*model.User)
	return user
}

// SessionMiddleware resolves the session cookie to the current user.
// A missing, expired or tampered session leaves the request anonymous.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Get(r, h.cfg.SessionName)
		if err != nil {
			logger.Warn("[Session] 读取会话失败", logger.ErrorField(err))
			next.ServeHTTP(w, r)
			return
		}

		userID, ok := session.UserID(sess)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.users.GetUserByID(r.Context(), userID)
		if err != nil {
			logger.Error("[Session] 加载用户失败", logger.Int64("userId", userID), logger.ErrorField(err))
			next.ServeHTTP(w, r)
			return
		}
		if user == nil {
			logger.Debug("[Session] 会话用户已不存在", logger.Int64("userId", userID))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), viewerKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth redirects anonymous visitors to the login page.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewerFrom(r) == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next(w, r)
	}
}

// RequireAdmin only lets administrators through.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := viewerFrom(r)
		if user == nil || !user.IsAdmin {
			logger.Warn("[Admin] 非管理员访问", logger.String("path", r.URL.Path))
			redirectWith(w, r, "/dashboard", "error2", "Admin posting permission is denied")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware 记录每个请求
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("[HTTP]",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)))
	})
}

// RecoverMiddleware turns a handler panic into the error page.
func (h *Handler) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("[Recover] 请求处理 panic",
					logger.String("path", r.URL.Path),
					logger.Any("panic", v))
				h.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
