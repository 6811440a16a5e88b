package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-club/auth"
	"github.com/diewo77/go-club/internal/imaging"
	"github.com/diewo77/go-club/internal/intro"
	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/internal/policy"
	"github.com/diewo77/go-club/internal/store"
	"github.com/diewo77/go-club/view"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	sessions *auth.Sessions
	intro    *IntroHandler
	router   http.Handler
	uploads  string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	return setupWithLimit(t, 0)
}

func setupWithLimit(t *testing.T, maxBody int64) *testEnv {
	t.Helper()
	// unique in-memory DB per test name to avoid leakage via shared cache
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Intro{}))

	v, err := view.New()
	require.NoError(t, err)

	log := zap.NewNop()
	users := store.NewUsers(db)
	uploads := t.TempDir()
	avatars := imaging.NewAvatarField(&imaging.LocalStorage{Dir: uploads, URLPrefix: "/uploads"}, 80, 0, log)
	sessions := auth.NewSessions("test-secret", time.Hour, false)

	ih := NewIntroHandler(users, intro.NewForm(users, avatars), policy.NewGate(nil), v, log, maxBody)
	ah := NewAuthHandler(users, sessions, v, log)

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.Get("/signup", ah.SignupForm)
	r.Post("/signup", ah.Signup)
	r.Get("/login", ah.LoginForm)
	r.Post("/login", ah.Login)
	r.Post("/logout", ah.Logout)
	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireAuth)
		r.Get("/intro", ih.Edit)
		r.Post("/intro", ih.Update)
		r.Get("/users/{id}/intro", ih.Edit)
		r.Post("/users/{id}/intro", ih.Update)
	})
	return &testEnv{db: db, sessions: sessions, intro: ih, router: r, uploads: uploads}
}

func (e *testEnv) user(t *testing.T, email, slug string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, Slug: slug, Role: role, EmailDigestType: models.DigestWeekly}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) cookie(t *testing.T, uid uint) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	e.sessions.Create(rec, uid)
	return rec.Result().Cookies()[0]
}

func (e *testEnv) do(req *http.Request, as *http.Cookie) *httptest.ResponseRecorder {
	if as != nil {
		req.AddCookie(as)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func introValues(slug string) url.Values {
	return url.Values{
		"slug":                    {slug},
		"full_name":               {"Вастрик"},
		"email":                   {"me@vas3k.ru"},
		"city":                    {"Berlin"},
		"country":                 {"DE"},
		"position":                {"Engineer"},
		"intro":                   {strings.Repeat("Привет, клуб! ", 40)},
		"email_digest_type":       {"daily"},
		"privacy_policy_accepted": {"on"},
	}
}

func postForm(path string, v url.Values, jsonAccept bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if jsonAccept {
		req.Header.Set("Accept", "application/json")
	}
	return req
}

func decodeFields(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	var body struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error)
	return body.Fields
}

func TestIntroRequiresLogin(t *testing.T) {
	env := setup(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/intro", nil), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestIntroEditRendersForm(t *testing.T) {
	env := setup(t)
	u := env.user(t, "me@vas3k.ru", "vas3k", models.RoleMember)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/intro", nil), env.cookie(t, u.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="slug"`)
	assert.Contains(t, body, `value="vas3k"`)
	assert.Contains(t, body, `class="markdown-editor-full"`)
	assert.Contains(t, body, `minlength="400"`)
	assert.Contains(t, body, `value="weekly" checked`)
}

func TestIntroUpdateSaves(t *testing.T) {
	env := setup(t)
	u := env.user(t, "me@vas3k.ru", "", models.RoleMember)

	rec := env.do(postForm("/intro", introValues("  Vas3k "), false), env.cookie(t, u.ID))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/intro?saved=1", rec.Header().Get("Location"))

	var saved models.User
	require.NoError(t, env.db.Preload("Intro").First(&saved, u.ID).Error)
	assert.Equal(t, "Vas3k", saved.Slug)
	require.NotNil(t, saved.SlugKey)
	assert.Equal(t, "vas3k", *saved.SlugKey)
	assert.Equal(t, models.DigestDaily, saved.EmailDigestType)
	assert.NotNil(t, saved.PrivacyPolicyAcceptedAt)
	require.NotNil(t, saved.Intro)
	assert.True(t, strings.HasPrefix(saved.Intro.Text, "Привет, клуб!"))

	// resubmitting the own nickname is fine
	rec = env.do(postForm("/intro", introValues("vas3k"), true), env.cookie(t, u.ID))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestIntroUpdateValidationJSON(t *testing.T) {
	env := setup(t)
	env.user(t, "other@example.com", "Vas3k", models.RoleMember)
	u := env.user(t, "me@vas3k.ru", "", models.RoleMember)

	rec := env.do(postForm("/intro", introValues("vas 3k"), true), env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeFields(t, rec)
	assert.Equal(t, []string{"В нике использованы недопустимые знаки"}, fields["slug"])

	rec = env.do(postForm("/intro", introValues("VAS3K"), true), env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = decodeFields(t, rec)
	assert.Equal(t, []string{"Пользователь с таким ником уже существует. Выберите другой"}, fields["slug"])

	v := introValues("fresh")
	v.Del("privacy_policy_accepted")
	v.Set("intro", strings.Repeat("a", 399))
	rec = env.do(postForm("/intro", v, true), env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = decodeFields(t, rec)
	assert.Equal(t, []string{"Минимум 400 символов"}, fields["intro"])
	assert.Len(t, fields["privacy_policy_accepted"], 1)
	assert.NotContains(t, fields, "slug")
}

func TestIntroUpdateValidationHTML(t *testing.T) {
	env := setup(t)
	u := env.user(t, "me@vas3k.ru", "", models.RoleMember)

	rec := env.do(postForm("/intro", introValues("ab"), false), env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	// submitted values survive the round trip
	assert.Contains(t, body, `value="ab"`)
	assert.Contains(t, body, "Минимум 3 символов")
}

func TestIntroModeratorEdit(t *testing.T) {
	env := setup(t)
	owner := env.user(t, "me@vas3k.ru", "vas3k", models.RoleMember)
	member := env.user(t, "member@example.com", "member", models.RoleMember)
	mod := env.user(t, "mod@example.com", "mod", models.RoleModerator)
	path := fmt.Sprintf("/users/%d/intro", owner.ID)

	rec := env.do(httptest.NewRequest(http.MethodGet, path, nil), env.cookie(t, member.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(postForm(path, introValues("vas3k"), false), env.cookie(t, member.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(postForm(path, introValues("vas3k"), false), env.cookie(t, mod.ID))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, path+"?saved=1", rec.Header().Get("Location"))

	var saved models.User
	require.NoError(t, env.db.First(&saved, owner.ID).Error)
	assert.Equal(t, "Berlin", saved.City)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/users/9999/intro", nil), env.cookie(t, mod.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntroViewOnlyProfile(t *testing.T) {
	env := setup(t)
	env.intro.Gate = policy.NewGate(map[models.Role]policy.Profile{
		models.RoleModerator: {Name: "auditor", Permissions: []policy.Permission{
			policy.NewPermission(policy.ResourceIntro, policy.ActionView),
		}},
	})
	owner := env.user(t, "me@vas3k.ru", "vas3k", models.RoleMember)
	auditor := env.user(t, "auditor@example.com", "auditor", models.RoleModerator)
	path := fmt.Sprintf("/users/%d/intro", owner.ID)

	rec := env.do(httptest.NewRequest(http.MethodGet, path, nil), env.cookie(t, auditor.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `value="vas3k"`)

	rec = env.do(postForm(path, introValues("vas3k"), false), env.cookie(t, auditor.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIntroBodyTooLarge(t *testing.T) {
	env := setupWithLimit(t, 1<<10)
	u := env.user(t, "me@vas3k.ru", "vas3k", models.RoleMember)

	v := introValues("vas3k")
	v.Set("intro", strings.Repeat("a", 4<<10))
	rec := env.do(postForm("/intro", v, true), env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	fields := decodeFields(t, rec)
	assert.Equal(t, []string{"Файл слишком большой"}, fields["avatar"])

	var saved models.User
	require.NoError(t, env.db.Preload("Intro").First(&saved, u.ID).Error)
	assert.Nil(t, saved.Intro)
}

// avatarBody builds a multipart intro submission carrying a small PNG.
func avatarBody(t *testing.T, v url.Values) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 80, B: 160, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range v {
		require.NoError(t, mw.WriteField(k, vs[0]))
	}
	fw, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestIntroAvatarDiscardedWhenSaveFails(t *testing.T) {
	env := setup(t)
	env.user(t, "taken@example.com", "other", models.RoleMember)
	u := env.user(t, "me@vas3k.ru", "", models.RoleMember)

	// the address collision only surfaces when the row is written
	v := introValues("vas3k")
	v.Set("email", "Taken@Example.com")
	body, contentType := avatarBody(t, v)
	req := httptest.NewRequest(http.MethodPost, "/intro", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	rec := env.do(req, env.cookie(t, u.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Len(t, decodeFields(t, rec)["email"], 1)

	entries, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntroAvatarUpload(t *testing.T) {
	env := setup(t)
	u := env.user(t, "me@vas3k.ru", "", models.RoleMember)

	body, contentType := avatarBody(t, introValues("vas3k"))
	req := httptest.NewRequest(http.MethodPost, "/intro", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(req, env.cookie(t, u.ID))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	var saved models.User
	require.NoError(t, env.db.First(&saved, u.ID).Error)
	require.True(t, strings.HasPrefix(saved.AvatarURL, "/uploads/"))
	_, err := os.Stat(filepath.Join(env.uploads, strings.TrimPrefix(saved.AvatarURL, "/uploads/")))
	assert.NoError(t, err)
}

func TestSignupLoginLogout(t *testing.T) {
	env := setup(t)

	rec := env.do(postForm("/signup", url.Values{"email": {"New@Example.com"}, "password": {"short"}}, false), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(postForm("/signup", url.Values{"email": {"New@Example.com"}, "password": {"long-enough"}}, false), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/intro", rec.Header().Get("Location"))
	require.NotEmpty(t, rec.Result().Cookies())

	var u models.User
	require.NoError(t, env.db.Where("email = ?", "new@example.com").First(&u).Error)
	assert.Equal(t, models.RoleMember, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("long-enough")))

	rec = env.do(postForm("/signup", url.Values{"email": {"new@example.com"}, "password": {"long-enough"}}, false), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(postForm("/login", url.Values{"email": {"new@example.com"}, "password": {"wrong-pass"}}, false), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(postForm("/login", url.Values{"email": {"NEW@example.com"}, "password": {"long-enough"}}, false), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/login", nil), cookies[0])
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/intro", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodPost, "/logout", nil), cookies[0])
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
