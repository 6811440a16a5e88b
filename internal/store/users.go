// Package store is the user record store backing the intro form.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/validation"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user_not_found")

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type Users struct{ DB *gorm.DB }

func NewUsers(db *gorm.DB) *Users { return &Users{DB: db} }

// SlugExists reports whether any user other than excludeID holds slug,
// compared case-insensitively. Soft-deleted users keep their nickname.
func (s *Users) SlugExists(ctx context.Context, slug string, excludeID *uint) (bool, error) {
	q := s.DB.WithContext(ctx).Unscoped().
		Model(&models.User{}).
		Where("slug_key = ?", strings.ToLower(slug))
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := q.Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("slug lookup: %w", err)
	}
	return count > 0, nil
}

// Get loads a user with its intro.
func (s *Users) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Preload("Intro").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetBySlug loads a user with its intro by nickname, case-insensitively.
func (s *Users) GetBySlug(ctx context.Context, slug string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Preload("Intro").
		Where("slug_key = ?", strings.ToLower(strings.TrimSpace(slug))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by slug: %w", err)
	}
	return &u, nil
}

// GetByEmail loads a user by e-mail. Stored addresses are lowercased.
func (s *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Create inserts a new user. Unique collisions come back as
// *validation.DuplicateValueError.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(u).Error; err != nil {
		return translateDuplicate(err, u)
	}
	return nil
}

// SaveIntro persists the profile fields of u and its intro text in one
// transaction. Unique collisions come back as *validation.DuplicateValueError.
func (s *Users) SaveIntro(ctx context.Context, u *models.User, text string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(u).Error; err != nil {
			return err
		}
		intro := models.Intro{UserID: u.ID}
		if err := tx.Where(models.Intro{UserID: u.ID}).
			Assign(models.Intro{Text: text}).
			FirstOrCreate(&intro).Error; err != nil {
			return err
		}
		u.Intro = &intro
		return nil
	})
	if err != nil {
		return translateDuplicate(err, u)
	}
	return nil
}

// translateDuplicate maps unique index violations onto the form field that
// caused them. Other errors are wrapped unchanged.
func translateDuplicate(err error, u *models.User) error {
	var detail string
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		if pgErr.Code != pgUniqueViolation {
			return fmt.Errorf("save user: %w", err)
		}
		detail = pgErr.ConstraintName
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		detail = err.Error()
	default:
		return fmt.Errorf("save user: %w", err)
	}
	switch {
	case strings.Contains(detail, "slug"):
		return &validation.DuplicateValueError{FieldName: "slug", Value: u.Slug}
	case strings.Contains(detail, "email"):
		return &validation.DuplicateValueError{FieldName: "email", Value: u.Email}
	}
	return fmt.Errorf("save user: %w", err)
}
