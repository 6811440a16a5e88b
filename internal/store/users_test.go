package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// unique in-memory DB per test name to avoid leakage via shared cache
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Intro{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, slug string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Slug: slug}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestSlugExistsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com", "Vas3k")

	exists, err := users.SlugExists(ctx, "vas3k", nil)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.SlugExists(ctx, "VAS3K", nil)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.SlugExists(ctx, "vas3k", &owner.ID)
	require.NoError(t, err)
	assert.False(t, exists, "the edited user must be excluded")

	other := seedUser(t, db, "other@example.com", "")
	exists, err = users.SlugExists(ctx, "Vas3k", &other.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.SlugExists(ctx, "nobody", nil)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSlugExistsIncludesSoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	gone := seedUser(t, db, "gone@example.com", "ghost")
	require.NoError(t, db.Delete(gone).Error)

	exists, err := users.SlugExists(context.Background(), "GHOST", nil)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveIntroCreatesAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()
	u := seedUser(t, db, "me@example.com", "")

	u.Slug = "Me_Myself"
	u.City = "Berlin"
	require.NoError(t, users.SaveIntro(ctx, u, "first version"))
	require.NotNil(t, u.Intro)

	u.City = "Lisbon"
	require.NoError(t, users.SaveIntro(ctx, u, "second version"))

	var count int64
	require.NoError(t, db.Model(&models.Intro{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", got.City)
	require.NotNil(t, got.SlugKey)
	assert.Equal(t, "me_myself", *got.SlugKey)
	require.NotNil(t, got.Intro)
	assert.Equal(t, "second version", got.Intro.Text)
}

func TestSaveIntroDuplicateSlug(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	seedUser(t, db, "first@example.com", "taken")
	u := seedUser(t, db, "second@example.com", "")

	// the uniqueness race: the lookup passed, the index still refuses
	u.Slug = "TAKEN"
	err := users.SaveIntro(context.Background(), u, "text")
	var dup *validation.DuplicateValueError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "slug", dup.FieldName)
	assert.Equal(t, "TAKEN", dup.Value)
}

func TestCreateDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &models.User{Email: "dup@example.com"}))

	err := users.Create(ctx, &models.User{Email: "dup@example.com"})
	var dup *validation.DuplicateValueError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "email", dup.FieldName)
}

func TestEmailUniqueIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()

	u := seedUser(t, db, "first@example.com", "")
	u.Email = "Foo@Example.com"
	require.NoError(t, users.SaveIntro(ctx, u, "hello"))
	assert.Equal(t, "foo@example.com", u.Email)

	err := users.Create(ctx, &models.User{Email: "foo@example.com"})
	var dup *validation.DuplicateValueError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "email", dup.FieldName)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Where("LOWER(email) = ?", "foo@example.com").Count(&n).Error)
	assert.Equal(t, int64(1), n)

	found, err := users.GetByEmail(ctx, "FOO@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()

	_, err := users.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = users.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	seedUser(t, db, "Mixed@Example.com", "")
	u, err := users.GetByEmail(ctx, " mixed@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", u.Email)
}

func TestGetBySlug(t *testing.T) {
	db := setupTestDB(t)
	users := NewUsers(db)
	ctx := context.Background()
	seedUser(t, db, "me@vas3k.ru", "Vas3k")

	u, err := users.GetBySlug(ctx, "VAS3K")
	require.NoError(t, err)
	assert.Equal(t, "Vas3k", u.Slug)

	_, err = users.GetBySlug(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
