package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/models"
	"github.com/vitotech/website-api/internal/notify"
	"github.com/vitotech/website-api/internal/services"
	"github.com/vitotech/website-api/internal/storage"
	appErrors "github.com/vitotech/website-api/pkg/errors"
	"github.com/vitotech/website-api/pkg/metrics"
	"github.com/vitotech/website-api/pkg/response"
)

// NotificationHandler exposes the contact-message endpoints: the public
// intake form and the admin moderation API.
type NotificationHandler struct {
	service  *services.NotificationService
	notifier *notify.Notifier
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, files *storage.Store, notifier *notify.Notifier) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db, files)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service, notifier: notifier}, nil
}

type createNotificationRequest struct {
	Name    string `form:"name" json:"name" validate:"required,max=150"`
	Email   string `form:"email" json:"email" validate:"required,email,max=254"`
	Phone   string `form:"phone" json:"phone" validate:"omitempty,max=30"`
	Company string `form:"company" json:"company" validate:"omitempty,max=150"`
	Service string `form:"service" json:"service" validate:"omitempty,max=50"`
	Message string `form:"message" json:"message" validate:"required"`
}

type updateNotificationRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=150"`
	Email   *string `json:"email" validate:"omitempty,email,max=254"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Company *string `json:"company" validate:"omitempty,max=150"`
	Service *string `json:"service" validate:"omitempty,max=50"`
	Message *string `json:"message"`
}

type notificationDTO struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Company        string     `json:"company"`
	Service        string     `json:"service"`
	Message        string     `json:"message"`
	Attachment     string     `json:"attachment,omitempty"`
	AttachmentName string     `json:"attachment_name,omitempty"`
	AttachmentURL  string     `json:"attachment_url,omitempty"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toNotificationDTO(n *models.Notification) notificationDTO {
	dto := notificationDTO{
		ID:        n.ID,
		Name:      n.Name,
		Email:     n.Email,
		Phone:     n.Phone,
		Company:   n.Company,
		Service:   n.Service,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if n.HasAttachment() {
		dto.Attachment = n.Attachment
		dto.AttachmentName = n.AttachmentFilename()
		dto.AttachmentURL = "/media/" + n.Attachment
	}
	return dto
}

func toNotificationDTOs(items []models.Notification) []notificationDTO {
	dtos := make([]notificationDTO, len(items))
	for i := range items {
		dtos[i] = toNotificationDTO(&items[i])
	}
	return dtos
}

// Create accepts a contact-form submission, optionally with one file
// attachment, and sends the admin alert and visitor acknowledgement.
// Delivery failures never fail the submission.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if !bindFormAndValidate(c, &req) {
		metrics.ContactMessages.WithLabelValues("rejected").Inc()
		return
	}

	input := services.CreateNotificationInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Service: req.Service,
		Message: req.Message,
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("attachment")
		switch {
		case errors.Is(err, http.ErrMissingFile):
			// no attachment
		case err != nil:
			response.Error(c, appErrors.NewBadRequest("invalid attachment upload"))
			metrics.ContactMessages.WithLabelValues("rejected").Inc()
			return
		default:
			file, openErr := fileHeader.Open()
			if openErr != nil {
				response.Error(c, appErrors.NewBadRequest("invalid attachment upload"))
				metrics.ContactMessages.WithLabelValues("rejected").Inc()
				return
			}
			defer file.Close()
			input.Attachment = &storage.Upload{
				Filename: fileHeader.Filename,
				Size:     fileHeader.Size,
				Content:  file,
			}
		}
	}

	notification, err := h.service.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		metrics.ContactMessages.WithLabelValues("rejected").Inc()
		return
	}
	metrics.ContactMessages.WithLabelValues("accepted").Inc()

	if h.notifier != nil {
		h.notifier.NotifyAdmin(requestContext(c), notification)
		h.notifier.NotifySubmitter(requestContext(c), notification)
	}

	response.Success(c, http.StatusCreated, toNotificationDTO(notification))
}

// List returns messages matching the query filters, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.service.List(requestContext(c), filtersFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toNotificationDTOs(items))
}

// Get returns a single message.
func (h *NotificationHandler) Get(c *gin.Context) {
	notification, err := h.service.Get(requestContext(c), pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toNotificationDTO(notification))
}

// Update applies a partial edit to the contact fields.
func (h *NotificationHandler) Update(c *gin.Context) {
	var req updateNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	notification, err := h.service.Update(requestContext(c), pathID(c), services.UpdateNotificationInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Service: req.Service,
		Message: req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toNotificationDTO(notification))
}

// Delete removes the message and its stored attachment.
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), pathID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkRead marks the message as read. Already-read messages come back unchanged.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.updateReadState(c, true)
}

// MarkUnread returns the message to the unread state.
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	h.updateReadState(c, false)
}

func (h *NotificationHandler) updateReadState(c *gin.Context, read bool) {
	var notification *models.Notification
	var err error
	if read {
		notification, err = h.service.MarkRead(requestContext(c), pathID(c))
	} else {
		notification, err = h.service.MarkUnread(requestContext(c), pathID(c))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toNotificationDTO(notification))
}

// Stats summarises the message collection under the same filters List accepts.
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(requestContext(c), filtersFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func filtersFromQuery(c *gin.Context) services.NotificationFilters {
	return services.NotificationFilters{
		IsRead:  strings.TrimSpace(c.Query("is_read")),
		Service: strings.TrimSpace(c.Query("service")),
		Search:  strings.TrimSpace(c.Query("search")),
	}
}

func pathID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
