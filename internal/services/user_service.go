package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/models"
	"github.com/vitotech/website-api/pkg/crypto"
	apperrors "github.com/vitotech/website-api/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// MinPasswordLength applies to self-service changes and admin creation.
const MinPasswordLength = 6

// CreateAdminInput describes the fields accepted when provisioning an administrator.
type CreateAdminInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UserService manages staff accounts: authentication lookups, self-service
// credential changes, and administrator provisioning.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies the username/password pair and records the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(username)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// ChangePassword swaps the user's password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if len(newPassword) < MinPasswordLength {
		return apperrors.NewValidation(map[string]string{
			"new_password": fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		})
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.NewValidation(map[string]string{
			"current_password": "current password is incorrect",
		})
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash new password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: change password: %w", err)
	}
	return nil
}

// ChangeUsername renames the account unless another account already holds the name.
func (s *UserService) ChangeUsername(ctx context.Context, id, username string) (*models.User, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidation(map[string]string{"username": "username is required"})
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, id).
		Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("user service: check username: %w", err)
	}
	if taken > 0 {
		return nil, apperrors.NewValidation(map[string]string{
			"username": "this username is already taken",
		})
	}

	if err := s.db.WithContext(ctx).Model(user).Update("username", username).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewValidation(map[string]string{
				"username": "this username is already taken",
			})
		}
		return nil, fmt.Errorf("user service: change username: %w", err)
	}

	user.Username = username
	return user, nil
}

// CreateAdmin provisions a new administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, input CreateAdminInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	fields := map[string]string{}
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		fields["username"] = "username is required"
	}
	if email == "" {
		fields["email"] = "email is required"
	}
	if len(input.Password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidation(fields)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsAdmin:   true,
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewValidation(map[string]string{
				"username": "username or email already exists",
			})
		}
		return nil, fmt.Errorf("user service: create admin: %w", err)
	}

	return user, nil
}

// EnsureBootstrapAdmin creates the first administrator when no account
// exists yet. Returns true when an account was created.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, username, email, password string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("user service: count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return false, nil
	}
	if strings.TrimSpace(email) == "" {
		email = strings.TrimSpace(username) + "@localhost"
	}

	_, err := s.CreateAdmin(ctx, CreateAdminInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
