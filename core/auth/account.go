package auth

import (
	"context"
	"fmt"
	"strings"

	"dabeat/core/apperr"
	"dabeat/model"
	"dabeat/repository"
)

// MinPasswordLength 密码最小长度
const MinPasswordLength = 8

// Registration is the submitted register form.
type Registration struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate checks the form before any store access.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" ||
		r.Password == "" || r.ConfirmPassword == "" {
		return apperr.Validation("All fields are required")
	}
	if r.Password != r.ConfirmPassword {
		return apperr.Validation("Passwords do not match")
	}
	if len(r.Password) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Service 账户注册与登录
type Service struct {
	users repository.UserRepository
}

// NewService creates an account service.
func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// Register creates the account together with its Favorites playlist.
func (s *Service) Register(ctx context.Context, reg Registration) (*model.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(reg.Username)
	email := strings.TrimSpace(reg.Email)

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if taken {
		return nil, apperr.ErrDuplicateUser
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user := model.NewUser(username, email, hash)
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by username or email.
func (s *Service) Login(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Validation("Invalid username or email")
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Validation("Invalid password")
	}
	return user, nil
}
