package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/models"
	"github.com/vitotech/website-api/internal/storage"
	apperrors "github.com/vitotech/website-api/pkg/errors"
	"github.com/vitotech/website-api/pkg/logger"
)

// CreateNotificationInput defines the fields accepted from the public contact form.
type CreateNotificationInput struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Service string
	Message string

	// Attachment is nil when the visitor uploaded nothing.
	Attachment *storage.Upload
}

// UpdateNotificationInput enumerates the mutable contact fields.
// Identity, timestamps, and the read state are only touched by their
// dedicated operations.
type UpdateNotificationInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Service *string
	Message *string
}

// NotificationFilters narrows listings. All filters combine with AND;
// Search alone matches any of the text fields.
type NotificationFilters struct {
	IsRead  string // raw query value; truthy/falsy tokens, otherwise ignored
	Service string
	Search  string
}

// NotificationStats summarises a filtered collection.
type NotificationStats struct {
	Total  int64 `json:"total"`
	Read   int64 `json:"read"`
	Unread int64 `json:"unread"`
}

// NotificationService owns the contact-message lifecycle: intake,
// moderation queries, the read/unread state machine, and deletion
// including the stored attachment.
type NotificationService struct {
	db    *gorm.DB
	files *storage.Store
	log   *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, files *storage.Store) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if files == nil {
		return nil, errors.New("notification service: file store is required")
	}
	return &NotificationService{
		db:    db,
		files: files,
		log:   logger.WithModule("notifications"),
	}, nil
}

// Create validates any attachment, stores it, and persists the record.
// The attachment is written before the row so a persisted record never
// references a file that failed to store; if the insert itself fails
// the just-written file is removed again.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification := models.Notification{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Company: strings.TrimSpace(input.Company),
		Service: strings.TrimSpace(input.Service),
		Message: input.Message,
	}

	if !models.IsValidService(notification.Service) {
		return nil, apperrors.NewValidation(map[string]string{
			"service": fmt.Sprintf("%q is not a valid choice", notification.Service),
		})
	}

	if input.Attachment != nil {
		path, err := s.files.Validate(*input.Attachment)
		if err != nil {
			return nil, err
		}
		if err := s.files.Save(path, input.Attachment.Content); err != nil {
			return nil, err
		}
		notification.Attachment = path
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		if notification.Attachment != "" {
			if rmErr := s.files.Remove(notification.Attachment); rmErr != nil {
				s.log.Warn("orphaned attachment after failed insert",
					zap.String("path", notification.Attachment), zap.Error(rmErr))
			}
		}
		return nil, fmt.Errorf("notification service: create: %w", err)
	}

	return &notification, nil
}

// List returns matching messages ordered newest first.
func (s *NotificationService) List(ctx context.Context, filters NotificationFilters) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	var rows []models.Notification
	if err := s.filtered(ctx, filters).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list: %w", err)
	}
	return rows, nil
}

// Get loads a single message by identifier.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	err := s.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notification service: get: %w", err)
	}
	return &notification, nil
}

// Update modifies the mutable contact fields of an existing message.
func (s *NotificationService) Update(ctx context.Context, id string, input UpdateNotificationInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updates["name"] = name
		} else {
			return nil, apperrors.NewValidation(map[string]string{"name": "name may not be blank"})
		}
	}
	if input.Email != nil {
		if email := strings.TrimSpace(*input.Email); email != "" {
			updates["email"] = email
		} else {
			return nil, apperrors.NewValidation(map[string]string{"email": "email may not be blank"})
		}
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Company != nil {
		updates["company"] = strings.TrimSpace(*input.Company)
	}
	if input.Service != nil {
		service := strings.TrimSpace(*input.Service)
		if !models.IsValidService(service) {
			return nil, apperrors.NewValidation(map[string]string{
				"service": fmt.Sprintf("%q is not a valid choice", service),
			})
		}
		updates["service"] = service
	}
	if input.Message != nil {
		if *input.Message == "" {
			return nil, apperrors.NewValidation(map[string]string{"message": "message may not be blank"})
		}
		updates["message"] = *input.Message
	}

	if len(updates) == 0 {
		return notification, nil
	}

	if err := s.db.WithContext(ctx).Model(notification).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("notification service: update: %w", err)
	}
	return s.Get(ctx, id)
}

// MarkRead flips a message to read. Calling it on an already-read
// message leaves read_at untouched.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !notification.IsRead {
		now := time.Now().UTC()
		if err := s.db.WithContext(ctx).Model(notification).
			Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.IsRead = true
		notification.ReadAt = &now
	}

	return notification, nil
}

// MarkUnread flips a message back to unread and clears read_at.
// Already-unread messages are left untouched.
func (s *NotificationService) MarkUnread(ctx context.Context, id string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if notification.IsRead {
		if err := s.db.WithContext(ctx).Model(notification).
			Updates(map[string]any{"is_read": false, "read_at": nil}).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark unread: %w", err)
		}
		notification.IsRead = false
		notification.ReadAt = nil
	}

	return notification, nil
}

// Delete removes the record and then its stored attachment. The record
// delete is authoritative; a file that survives a crash between the
// two steps is picked up by the maintenance sweep.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("notification service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	if notification.HasAttachment() {
		if err := s.files.Remove(notification.Attachment); err != nil {
			s.log.Warn("attachment left behind after delete",
				zap.String("id", id), zap.String("path", notification.Attachment), zap.Error(err))
		}
	}

	return nil
}

// Stats computes totals over the same filtered set a listing would return.
// Unread is derived, so total == read + unread always holds.
func (s *NotificationService) Stats(ctx context.Context, filters NotificationFilters) (NotificationStats, error) {
	ctx = ensureContext(ctx)

	var stats NotificationStats
	if err := s.filtered(ctx, filters).Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("notification service: count total: %w", err)
	}
	if err := s.filtered(ctx, filters).Where("is_read = ?", true).Count(&stats.Read).Error; err != nil {
		return stats, fmt.Errorf("notification service: count read: %w", err)
	}
	stats.Unread = stats.Total - stats.Read
	return stats, nil
}

// ReferencedAttachments returns every attachment path currently owned
// by a record. Used by the orphan sweep.
func (s *NotificationService) ReferencedAttachments(ctx context.Context) (map[string]struct{}, error) {
	ctx = ensureContext(ctx)

	var paths []string
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("attachment <> ''").
		Pluck("attachment", &paths).Error; err != nil {
		return nil, fmt.Errorf("notification service: list attachments: %w", err)
	}

	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, nil
}

func (s *NotificationService) filtered(ctx context.Context, filters NotificationFilters) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Notification{})

	if value, ok := parseReadFilter(filters.IsRead); ok {
		query = query.Where("is_read = ?", value)
	}
	if service := strings.TrimSpace(filters.Service); service != "" {
		query = query.Where("service = ?", service)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(company) LIKE ? OR LOWER(message) LIKE ?",
			pattern, pattern, pattern, pattern, pattern,
		)
	}

	return query
}

// parseReadFilter maps the raw is_read query value onto a boolean.
// Unrecognised tokens mean "no filter", mirroring lenient query parsing.
func parseReadFilter(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}
