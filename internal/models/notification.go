package models

import (
	"path"
	"time"
)

// ServiceChoices is the closed set of services a visitor can ask about.
// An empty value means the visitor did not pick one.
var ServiceChoices = []string{
	"AI Services",
	"Website Development",
	"Mobile App Development",
	"Branding & Design",
	"Bulk SMS Integration",
	"IT Consulting",
	"Other",
}

// Notification is a contact message submitted from the public website,
// optionally carrying a stored file attachment.
type Notification struct {
	BaseModel

	Name    string `gorm:"type:varchar(150);not null" json:"name"`
	Email   string `gorm:"type:varchar(254);not null" json:"email"`
	Phone   string `gorm:"type:varchar(30)" json:"phone"`
	Company string `gorm:"type:varchar(150)" json:"company"`
	Service string `gorm:"type:varchar(50)" json:"service"`
	Message string `gorm:"type:text;not null" json:"message"`

	// Attachment holds the storage-relative path of the uploaded file,
	// e.g. "attachments/3f2a....pdf". Empty when nothing was uploaded.
	// Uniqueness comes from the random token in the generated name.
	Attachment string `gorm:"type:varchar(500)" json:"attachment,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// HasAttachment reports whether a file was stored for this message.
func (n *Notification) HasAttachment() bool {
	return n.Attachment != ""
}

// AttachmentFilename returns the stored file's basename. The original
// upload name is not retained; only the generated name survives.
func (n *Notification) AttachmentFilename() string {
	if n.Attachment == "" {
		return ""
	}
	return path.Base(n.Attachment)
}

// IsValidService reports whether value is one of the known choices or blank.
func IsValidService(value string) bool {
	if value == "" {
		return true
	}
	for _, choice := range ServiceChoices {
		if value == choice {
			return true
		}
	}
	return false
}
