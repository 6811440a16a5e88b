package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-club/auth"
	"github.com/diewo77/go-club/httpx"
	"github.com/diewo77/go-club/i18n"
	"github.com/diewo77/go-club/internal/config"
	"github.com/diewo77/go-club/internal/handlers"
	"github.com/diewo77/go-club/internal/imaging"
	"github.com/diewo77/go-club/internal/intro"
	"github.com/diewo77/go-club/internal/policy"
	"github.com/diewo77/go-club/internal/store"
	"github.com/diewo77/go-club/view"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const langCookieName = "lang"

// App is the main application handler that sets up all routes.
type App struct {
	router   chi.Router
	db       *gorm.DB
	log      *zap.Logger
	sessions *auth.Sessions
}

// NewApp wires stores, forms and handlers into a router.
func NewApp(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*App, error) {
	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	users := store.NewUsers(db)
	sessions := auth.NewSessions(cfg.App.SessionSecret, cfg.App.SessionTTL, !cfg.App.Dev())
	sessions.Verify = func(ctx context.Context, uid uint) bool {
		_, err := users.Get(ctx, uid)
		return err == nil
	}

	storage := imaging.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.URLPrefix)
	avatars := imaging.NewAvatarField(storage, cfg.Upload.AvatarQuality, cfg.Upload.AvatarMaxBytes, log.Named("avatar"))
	form := intro.NewForm(users, avatars)
	// room for the text fields next to the largest accepted avatar
	maxBody := cfg.Upload.AvatarMaxBytes + 1<<20

	ih := handlers.NewIntroHandler(users, form, policy.NewGate(nil), renderer, log.Named("intro"), maxBody)
	ah := handlers.NewAuthHandler(users, sessions, renderer, log.Named("auth"))

	app := &App{router: chi.NewRouter(), db: db, log: log, sessions: sessions}
	app.setupRoutes(cfg, ih, ah)
	return app, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) setupRoutes(cfg *config.Config, ih *handlers.IntroHandler, ah *handlers.AuthHandler) {
	r := a.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.sessions.Middleware)
	r.Use(withLanguage)

	r.Get("/healthz", a.healthz)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/intro", http.StatusSeeOther)
	})

	r.Get("/signup", ah.SignupForm)
	r.Post("/signup", ah.Signup)
	r.Get("/login", ah.LoginForm)
	r.Post("/login", ah.Login)
	r.Post("/logout", ah.Logout)

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.RequireAuth)
		r.Get("/intro", ih.Edit)
		r.Post("/intro", ih.Update)
		r.Get("/users/{id}/intro", ih.Edit)
		r.Post("/users/{id}/intro", ih.Update)
	})

	prefix := "/" + strings.Trim(cfg.Upload.URLPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Upload.Dir))))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		a.log.Warn("health check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withLanguage resolves the request language: ?lang=, then the lang cookie,
// then Accept-Language. An explicit ?lang= is remembered in the cookie.
func withLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var lang string
		if q := r.URL.Query().Get("lang"); q != "" {
			lang = i18n.Normalize(q)
			http.SetCookie(w, &http.Cookie{
				Name:     langCookieName,
				Value:    lang,
				Path:     "/",
				MaxAge:   365 * 24 * 3600,
				SameSite: http.SameSiteLaxMode,
			})
		} else if c, err := r.Cookie(langCookieName); err == nil && c.Value != "" {
			lang = i18n.Normalize(c.Value)
		} else {
			lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}

// requestLogger logs one line per request with zap.
func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
