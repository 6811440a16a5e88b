package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-club/auth"
	"github.com/diewo77/go-club/httpx"
	"github.com/diewo77/go-club/i18n"
	"github.com/diewo77/go-club/internal/intro"
	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/internal/policy"
	"github.com/diewo77/go-club/internal/store"
	"github.com/diewo77/go-club/validation"
	"github.com/diewo77/go-club/view"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipart bodies above this size spill to temporary files
const multipartMemory = 8 << 20

// IntroHandler serves the intro form of the logged-in member and, for
// moderators, of any member.
type IntroHandler struct {
	Users   *store.Users
	Form    *intro.Form
	Gate    *policy.Gate
	View    *view.Renderer
	Log     *zap.Logger
	MaxBody int64
	Now     func() time.Time
}

// NewIntroHandler creates an intro handler. maxBody caps request bodies.
func NewIntroHandler(users *store.Users, form *intro.Form, gate *policy.Gate, v *view.Renderer, log *zap.Logger, maxBody int64) *IntroHandler {
	return &IntroHandler{Users: users, Form: form, Gate: gate, View: v, Log: log, MaxBody: maxBody, Now: time.Now}
}

// Edit renders the form prefilled from the edited member.
func (h *IntroHandler) Edit(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.target(w, r, policy.ActionView)
	if !ok {
		return
	}
	if auth.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"user": owner})
		return
	}
	h.render(w, r, http.StatusOK, owner, intro.Initial(owner), nil)
}

// Update validates the submission and saves it into the edited member.
func (h *IntroHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.target(w, r, policy.ActionUpdate)
	if !ok {
		return
	}

	if h.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	in, err := bindIntro(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			// the body was cut short, so the typed values are gone
			errs := validation.NewErrors()
			errs.Add(&validation.InvalidFormatError{FieldName: "avatar", Reason: "file_too_large"})
			h.invalid(w, r, owner, intro.Initial(owner), errs)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	in.AvatarURL = owner.AvatarURL

	ctx := r.Context()
	cleaned, errs, err := h.Form.Validate(ctx, in, owner)
	if err != nil {
		h.fail(w, r, "validate intro", owner, err)
		return
	}
	if errs.Has() {
		h.invalid(w, r, owner, in, errs)
		return
	}

	cleaned.Apply(owner, h.Now())
	if err := h.Users.SaveIntro(ctx, owner, cleaned.IntroText); err != nil {
		// lost the race for the nickname or e-mail
		if fe, ok := validation.AsFieldError(err); ok {
			if derr := h.Form.DiscardAvatar(ctx, cleaned); derr != nil {
				h.Log.Warn("avatar left behind", zap.Uint("user_id", owner.ID), zap.Error(derr))
			}
			errs = validation.NewErrors()
			errs.Add(fe)
			h.invalid(w, r, owner, in, errs)
			return
		}
		h.fail(w, r, "save intro", owner, err)
		return
	}

	actor, _ := auth.UserIDFromContext(ctx)
	h.Log.Info("intro saved",
		zap.Uint("user_id", owner.ID),
		zap.Uint("actor_id", actor),
		zap.String("slug", owner.Slug))

	if auth.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"user": owner})
		return
	}
	http.Redirect(w, r, h.action(r)+"?saved=1", http.StatusSeeOther)
}

func bindIntro(r *http.Request) (intro.Input, error) {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return intro.Input{}, err
	}
	var avatar *multipart.FileHeader
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["avatar"]; len(files) > 0 {
			avatar = files[0]
		}
	}
	return intro.Bind(r.PostForm, avatar), nil
}

// target loads the member whose intro is edited and checks the actor may
// perform action on it. It writes the error response itself and returns
// false on failure.
func (h *IntroHandler) target(w http.ResponseWriter, r *http.Request, action policy.Action) (*models.User, bool) {
	ctx := r.Context()
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	actor, err := h.Users.Get(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	if err != nil {
		h.fail(w, r, "load actor", nil, err)
		return nil, false
	}

	idParam := chi.URLParam(r, "id")
	if idParam == "" {
		return actor, true
	}
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
		return nil, false
	}
	owner := actor
	if uint(id) != actor.ID {
		owner, err = h.Users.Get(ctx, uint(id))
		if errors.Is(err, store.ErrNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
			return nil, false
		}
		if err != nil {
			h.fail(w, r, "load user", nil, err)
			return nil, false
		}
	}
	if err := h.Gate.Authorize(ctx, actor, action, owner); err != nil {
		h.Log.Warn("intro access denied",
			zap.Uint("actor_id", actor.ID),
			zap.Uint("user_id", owner.ID),
			zap.String("action", string(action)))
		lang := i18n.LangFromContext(ctx)
		httpx.JSONError(w, http.StatusForbidden, "forbidden", i18n.T(lang, "error.forbidden"))
		return nil, false
	}
	return owner, true
}

func (h *IntroHandler) action(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return "/users/" + id + "/intro"
	}
	return "/intro"
}

func (h *IntroHandler) invalid(w http.ResponseWriter, r *http.Request, owner *models.User, in intro.Input, errs *validation.Errors) {
	if auth.WantsJSON(r) {
		lang := i18n.LangFromContext(r.Context())
		httpx.ValidationError(w, errs.Messages(func(fe validation.FieldError) string {
			return i18n.Message(lang, fe.Field(), fe.Code(), fe.Args()...)
		}))
		return
	}
	h.render(w, r, http.StatusBadRequest, owner, in, errs)
}

func (h *IntroHandler) render(w http.ResponseWriter, r *http.Request, status int, owner *models.User, in intro.Input, errs *validation.Errors) {
	lang := i18n.LangFromContext(r.Context())
	data := map[string]any{
		"Title":  "intro.title",
		"Action": h.action(r),
		"Owner":  owner,
		"Saved":  r.URL.Query().Get("saved") == "1" && !errs.Has(),
		"Fields": FieldViews(lang, in, errs),
	}
	if err := h.View.Render(w, r, status, "intro.html", data); err != nil {
		h.fail(w, r, "render intro", owner, err)
	}
}

func (h *IntroHandler) fail(w http.ResponseWriter, r *http.Request, op string, owner *models.User, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if owner != nil {
		fields = append(fields, zap.Uint("user_id", owner.ID))
	}
	h.Log.Error("intro request failed", fields...)
	lang := i18n.LangFromContext(r.Context())
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", i18n.T(lang, "error.internal"))
}
