package handlers

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitotech/website-api/internal/storage"
	appErrors "github.com/vitotech/website-api/pkg/errors"
	"github.com/vitotech/website-api/pkg/response"
)

// MediaHandler serves stored attachments to authorised staff.
type MediaHandler struct {
	files *storage.Store
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(files *storage.Store) *MediaHandler {
	return &MediaHandler{files: files}
}

// Attachment streams a stored attachment by its basename.
func (h *MediaHandler) Attachment(c *gin.Context) {
	name := path.Base(strings.TrimSpace(c.Param("name")))
	if name == "" || name == "." || name == "/" {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	storagePath := path.Join(storage.AttachmentPrefix, name)
	if !h.files.Exists(storagePath) {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	c.FileAttachment(h.files.FilePath(storagePath), name)
}
