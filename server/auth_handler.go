package server

import (
	"errors"
	"net/http"

	"dabeat/core/apperr"
	"dabeat/core/auth"
	"dabeat/logger"
	"dabeat/session"
)

// LoginPage 登录页（同时承载注册表单）
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "auth", http.StatusOK, authView{User: viewerFrom(r)})
}

// RegisterPage 打开注册表单
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "auth", http.StatusOK, authView{User: viewerFrom(r), ShowRegister: true})
}

// RegisterHandler handles the registration form.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "auth", http.StatusBadRequest, authView{Error: "All fields are required", ShowRegister: true})
		return
	}

	reg := auth.Registration{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	user, err := h.accounts.Register(r.Context(), reg)
	switch {
	case err == nil:
		logger.Info("[Register] 用户注册成功",
			logger.Int64("userId", user.ID),
			logger.String("username", user.Username))
		h.render(w, r, "auth", http.StatusOK, authView{Message: "Registration successful! Please login."})
	case errors.Is(err, apperr.ErrValidation):
		h.render(w, r, "auth", http.StatusBadRequest, authView{Error: err.Error(), ShowRegister: true})
	case errors.Is(err, apperr.ErrDuplicateUser):
		logger.Warn("[Register] 用户名或邮箱已存在", logger.String("username", reg.Username))
		h.render(w, r, "auth", http.StatusConflict, authView{Error: "Username or email already exists", ShowRegister: true})
	default:
		logger.Error("[Register] 注册失败", logger.ErrorField(err))
		h.render(w, r, "auth", http.StatusInternalServerError, authView{Error: "Registration failed. Please try again.", ShowRegister: true})
	}
}

// LoginHandler authenticates by username or email and starts a session.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "auth", http.StatusBadRequest, authView{Error: "All fields are required"})
		return
	}
	login := r.PostFormValue("username")

	user, err := h.accounts.Login(r.Context(), login, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			logger.Warn("[Login] 登录失败", logger.String("login", login), logger.ErrorField(err))
			h.render(w, r, "auth", http.StatusUnauthorized, authView{Error: err.Error()})
			return
		}
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		h.render(w, r, "auth", http.StatusInternalServerError, authView{Error: "Login failed. Please try again."})
		return
	}

	sess, err := h.sessions.Get(r, h.cfg.SessionName)
	if err != nil {
		logger.Warn("[Login] 读取旧会话失败，使用新会话", logger.ErrorField(err))
	}
	if sess == nil {
		h.render(w, r, "auth", http.StatusInternalServerError, authView{Error: "Login failed. Please try again."})
		return
	}
	// 登录后换新的会话 ID，旧记录作废
	if err := session.Rotate(r.Context(), h.sessions, sess); err != nil {
		logger.Warn("[Login] 删除旧会话失败", logger.ErrorField(err))
	}
	session.SetUser(sess, user.ID, user.Username)
	if err := sess.Save(r, w); err != nil {
		logger.Error("[Login] 保存会话失败", logger.ErrorField(err))
		h.render(w, r, "auth", http.StatusInternalServerError, authView{Error: "Login failed. Please try again."})
		return
	}

	logger.Info("[Login] 用户登录成功",
		logger.Int64("userId", user.ID),
		logger.String("username", user.Username))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// LogoutHandler destroys the session and returns to the previous page.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r, h.cfg.SessionName)
	if err == nil {
		session.Destroy(sess)
		if err := sess.Save(r, w); err != nil {
			logger.Error("[Logout] 删除会话失败", logger.ErrorField(err))
		}
	}

	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HomePage 首页
func (h *Handler) HomePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home", http.StatusOK, homeView{User: viewerFrom(r)})
}
