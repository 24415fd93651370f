// Package bootstrap prepares the database and cache for command line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"campushub/internal/cache"
	"campushub/internal/config"
	"campushub/internal/database"
	"campushub/internal/models"
	"campushub/internal/seed"
	"campushub/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// Runtime is what InitRuntime established. Redis is nil when unreachable;
// RootAdmin is nil unless the development root account is enabled.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	RootAdmin *models.Profile
}

// InitRuntime connects to DB and Redis and optionally seeds the built-in circles,
// owned by the development root admin.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rt := &Runtime{DB: db, Redis: cache.GetClient()}

	if opts.SeedBuiltIns {
		rt.RootAdmin, err = EnsureBuiltIns(ctx, cfg, db)
	} else {
		rt.RootAdmin, err = ensureDevRootAdmin(ctx, cfg, db)
	}
	if err != nil {
		return nil, fmt.Errorf("runtime bootstrap: %w", err)
	}
	return rt, nil
}

// EnsureBuiltIns makes sure the development root admin exists and owns the
// built-in circles. Without a root admin the circles are left to the seeder.
func EnsureBuiltIns(ctx context.Context, cfg *config.Config, db *gorm.DB) (*models.Profile, error) {
	root, err := ensureDevRootAdmin(ctx, cfg, db)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}
	if root == nil {
		return nil, nil
	}
	created, err := seed.Circles(ctx, db, root.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed built-in circles: %w", err)
	}
	log.Printf("built-in circles ensured (%d created)", created)
	return root, nil
}

// ensureDevRootAdmin creates or promotes the development root profile, matched by email.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) (*models.Profile, error) {
	if cfg == nil || db == nil {
		return nil, nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil, nil
	}

	username := strings.ToLower(strings.TrimSpace(cfg.DevRootUsername))
	if username == "" {
		username = "campus_root"
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("DEV_ROOT_USERNAME: %w", err)
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@campushub.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return nil, errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash root password: %w", err)
	}

	var root models.Profile
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.Profile{
				Email:        email,
				PasswordHash: string(hashedPassword),
				Username:     &username,
				DisplayName:  "Campus Root",
				Role:         models.RoleAdmin,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		}

		updates := map[string]any{"role": models.RoleAdmin}
		if cfg.DevRootForceCredentials {
			updates["username"] = username
			updates["password_hash"] = string(hashedPassword)
		}
		if err := tx.Model(&root).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&root, root.ID).Error
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateProfile(ctx, root.ID, root.Handle())
	log.Printf("development root admin ensured for profile %d (%s)", root.ID, email)
	return &root, nil
}
