// Package db opens the gorm connection, applies the schema and seeds the
// initial accounts.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-club/internal/config"
	"github.com/diewo77/go-club/internal/logging"
	"github.com/diewo77/go-club/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// postgres driver and file source for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Connect opens the configured database, retrying while postgres starts.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dsn := NormalizeDSN(cfg.DSN)
		if dsn == "" {
			return nil, errors.New("DATABASE_DSN is empty")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	log.Info("connecting to database", zap.String("driver", cfg.Driver), zap.String("dsn", MaskDSN(cfg.DSN)))

	gcfg := &gorm.Config{Logger: logging.Gorm(log, cfg.Debug)}
	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			err = db.WithContext(ctx).Exec("SELECT 1").Error
		}
		if err == nil {
			return db, nil
		}
		log.Warn("database not ready", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("failed to connect database after retries: %w", err)
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.User{}, &models.Intro{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations applies the SQL files in dir with golang-migrate.
// Only postgres is supported; sqlite databases use Migrate.
func RunSQLMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, ToURLDSN(NormalizeDSN(dsn)))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Setup applies the schema the way cfg asks for.
func Setup(db *gorm.DB, cfg config.DatabaseConfig) error {
	if cfg.Migrations && cfg.Driver == "postgres" {
		return RunSQLMigrations(cfg.DSN, cfg.MigrationsDir)
	}
	return Migrate(db)
}

// SeedAdmin creates the first god account when it does not exist yet.
// Empty credentials skip seeding.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	var count int64
	if err := db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("seed lookup: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{Email: email, Password: string(hash), Role: models.RoleGod}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}
