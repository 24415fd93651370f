package repository

import (
	"context"
	"fmt"
	"testing"

	"campushub/internal/database"
	"campushub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a private in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func createProfile(t *testing.T, db *gorm.DB, handle string) *models.Profile {
	t.Helper()
	username := handle
	p := &models.Profile{
		Email:        fmt.Sprintf("%s@campus.edu", handle),
		PasswordHash: "hash",
		Username:     &username,
		DisplayName:  handle,
	}
	require.NoError(t, NewProfileRepository(db).CreateProfile(context.Background(), p))
	return p
}

func createPost(t *testing.T, db *gorm.DB, userID uint, content string, tags ...string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: userID, Content: content, Hashtags: tags}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), p))
	return p
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}
