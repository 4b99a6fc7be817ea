package permissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/models"
)

// Capability is the actor level an action demands.
type Capability int

const (
	// CapabilityPublic actions are open to anonymous visitors.
	CapabilityPublic Capability = iota
	// CapabilityAuthenticated actions need any signed-in account.
	CapabilityAuthenticated
	// CapabilityAdmin actions need an administrator account.
	CapabilityAdmin
)

// Action identifiers used across the API surface.
const (
	ActionNotificationCreate = "notification.create"
	ActionNotificationView   = "notification.view"
	ActionNotificationManage = "notification.manage"
	ActionMediaView          = "media.view"
	ActionUserSelf           = "user.self"
	ActionUserCreateAdmin    = "user.create_admin"
)

// registry is the single authorization table consulted before any
// handler logic runs. Actions absent from the table are denied.
var registry = map[string]Capability{
	ActionNotificationCreate: CapabilityPublic,
	ActionNotificationView:   CapabilityAdmin,
	ActionNotificationManage: CapabilityAdmin,
	ActionMediaView:          CapabilityAdmin,
	ActionUserSelf:           CapabilityAuthenticated,
	ActionUserCreateAdmin:    CapabilityAdmin,
}

// Required looks up the capability an action demands. Unknown actions
// report ok == false and must be denied.
func Required(action string) (Capability, bool) {
	capability, ok := registry[action]
	return capability, ok
}

// Checker resolves whether a given actor may perform an action. The
// actor's capabilities are read fresh from the database so revoking an
// account takes effect immediately.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a Checker.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permissions: db is required")
	}
	return &Checker{db: db}, nil
}

// Check reports whether the actor identified by userID (empty for
// anonymous visitors) may perform the action. The decision fails
// closed: unknown actions and unknown users are denied.
func (c *Checker) Check(ctx context.Context, userID, action string) (bool, error) {
	capability, ok := Required(action)
	if !ok {
		return false, nil
	}

	if capability == CapabilityPublic {
		return true, nil
	}

	if userID == "" {
		return false, nil
	}

	var user models.User
	err := c.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("permissions: load user: %w", err)
	}

	if !user.IsActive {
		return false, nil
	}

	switch capability {
	case CapabilityAuthenticated:
		return true, nil
	case CapabilityAdmin:
		return user.IsAdmin, nil
	default:
		return false, nil
	}
}
