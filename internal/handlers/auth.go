package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-club/auth"
	"github.com/diewo77/go-club/httpx"
	"github.com/diewo77/go-club/i18n"
	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/internal/store"
	"github.com/diewo77/go-club/validation"
	"github.com/diewo77/go-club/view"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	Users    *store.Users
	Sessions *auth.Sessions
	View     *view.Renderer
	Log      *zap.Logger
	engine   *validation.Engine
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users *store.Users, sessions *auth.Sessions, v *view.Renderer, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Users: users, Sessions: sessions, View: v, Log: log, engine: validation.New()}
}

func (h *AuthHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := h.View.Render(w, r, status, name, data); err != nil {
		h.Log.Error("render failed", zap.String("template", name), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "template_error", nil)
	}
}

// SignupForm renders the signup page.
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "signup.html", map[string]any{"Title": "auth.signup", "Email": ""})
}

// Signup creates an account and logs it in, then sends it to the intro form.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	email := models.NormalizeEmail(r.FormValue("email"))
	pass := r.FormValue("password")
	data := map[string]any{"Title": "auth.signup", "Email": email}

	if msg := h.checkCredentials(email, pass); msg != "" {
		data["Error"] = msg
		h.renderPage(w, r, http.StatusBadRequest, "signup.html", data)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("hash password", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	user := models.User{
		Email:           email,
		Password:        string(hash),
		Role:            models.RoleMember,
		EmailDigestType: models.DefaultDigestType,
	}
	if err := h.Users.Create(r.Context(), &user); err != nil {
		var dup *validation.DuplicateValueError
		if errors.As(err, &dup) {
			data["Error"] = "auth.email_taken"
			h.renderPage(w, r, http.StatusBadRequest, "signup.html", data)
			return
		}
		h.Log.Error("create user", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	h.Log.Info("member signed up", zap.Uint("user_id", user.ID))
	h.Sessions.Create(w, user.ID)
	http.Redirect(w, r, "/intro", http.StatusSeeOther)
}

// checkCredentials returns an i18n key describing the first problem, or "".
func (h *AuthHandler) checkCredentials(email, pass string) string {
	if errs, err := h.engine.Check("email", email, "required,email"); err != nil || len(errs) > 0 {
		return "email.invalid_format"
	}
	if len([]rune(pass)) < minPasswordLength {
		return "auth.password_too_short"
	}
	return ""
}

// LoginForm renders the login page, or skips it for a live session.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		if _, err := h.Users.Get(r.Context(), uid); err == nil {
			http.Redirect(w, r, "/intro", http.StatusSeeOther)
			return
		}
		// stale session
		h.Sessions.Clear(w)
	}
	h.renderPage(w, r, http.StatusOK, "login.html", map[string]any{"Title": "auth.login", "Email": ""})
}

// Login checks the password and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	pass := r.FormValue("password")
	data := map[string]any{"Title": "auth.login", "Email": email, "Error": "auth.invalid_credentials"}

	user, err := h.Users.GetByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.Log.Error("load user by email", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(pass)) != nil {
		h.renderPage(w, r, http.StatusUnauthorized, "login.html", data)
		return
	}
	h.Sessions.Create(w, user.ID)
	lang := i18n.LangFromContext(r.Context())
	h.Log.Info("member logged in", zap.Uint("user_id", user.ID), zap.String("lang", lang))
	http.Redirect(w, r, "/intro", http.StatusSeeOther)
}

// Logout clears the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
