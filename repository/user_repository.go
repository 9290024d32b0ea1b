package repository

import (
	"context"
	"errors"
	"fmt"

	"dabeat/core/apperr"
	"dabeat/db"
	"dabeat/model"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
// Getters return (nil, nil) when the user does not exist.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	SetAdmin(ctx context.Context, username string, isAdmin bool) (bool, error)
}

// gormUserRepository GORM 实现
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a user repository over db (which may be a transaction).
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// withPlaylists preloads playlists and their songs in display order.
func withPlaylists(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Playlists", func(db *gorm.DB) *gorm.DB {
			return db.Order("playlists.id ASC")
		}).
		Preload("Playlists.Songs", func(db *gorm.DB) *gorm.DB {
			return db.Order("playlist_songs.position ASC, playlist_songs.id ASC")
		})
}

// CreateUser inserts the user together with its playlists.
func (r *gormUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return fmt.Errorf("create user %s: %w", user.Username, apperr.ErrDuplicateUser)
		}
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	err := withPlaylists(r.db.WithContext(ctx)).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *gormUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.first(ctx, "users.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username.
func (r *gormUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.first(ctx, "users.username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return user, nil
}

// GetUserByLogin matches login against username or email.
func (r *gormUserRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	user, err := r.first(ctx, "users.username = ? OR users.email = ?", login, login)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by login %s: %w", login, err)
	}
	return user, nil
}

// ExistsByUsernameOrEmail 检查用户名或邮箱是否已被占用
func (r *gormUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	return count > 0, err
}

// ExistsByUsername 检查用户是否仍然存在
func (r *gormUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

// SetAdmin updates the admin flag; it reports false when no such user exists.
func (r *gormUserRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) (bool, error) {
	exists, err := r.ExistsByUsername(ctx, username)
	if err != nil || !exists {
		return false, err
	}
	err = r.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Update("is_admin", isAdmin).Error
	if err != nil {
		return false, fmt.Errorf("failed to update admin flag for %s: %w", username, err)
	}
	return true, nil
}
