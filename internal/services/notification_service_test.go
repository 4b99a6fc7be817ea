package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/database/testutil"
	"github.com/vitotech/website-api/internal/models"
	"github.com/vitotech/website-api/internal/storage"
	apperrors "github.com/vitotech/website-api/pkg/errors"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *storage.Store, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	store, err := storage.New(t.TempDir(), storage.DefaultMaxUploadSize)
	require.NoError(t, err)

	svc, err := NewNotificationService(db, store)
	require.NoError(t, err)
	return svc, store, db
}

func upload(name string, content []byte) *storage.Upload {
	return &storage.Upload{
		Filename: name,
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}
}

func TestCreateNotification(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		Name:    "  Ada Lovelace ",
		Email:   "ada@example.com",
		Service: "AI Services",
		Message: "Please call me back.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Ada Lovelace", created.Name)
	require.False(t, created.IsRead)
	require.Nil(t, created.ReadAt)
	require.Empty(t, created.Attachment)
}

func TestCreateNotificationWithAttachment(t *testing.T) {
	svc, store, _ := newTestNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		Name:       "Ada",
		Email:      "ada@example.com",
		Message:    "See attached brief.",
		Attachment: upload("Brief.PDF", []byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	require.Equal(t, storage.AttachmentPrefix, filepath.Dir(created.Attachment))
	require.Equal(t, ".pdf", filepath.Ext(created.Attachment))
	require.True(t, store.Exists(created.Attachment))
}

func TestCreateNotificationRejectsOversizedAttachment(t *testing.T) {
	svc, store, db := newTestNotificationService(t)
	ctx := context.Background()

	big := make([]byte, storage.DefaultMaxUploadSize+1)
	_, err := svc.Create(ctx, CreateNotificationInput{
		Name:       "Ada",
		Email:      "ada@example.com",
		Message:    "Huge file",
		Attachment: upload("huge.zip", big),
	})
	require.ErrorIs(t, err, storage.ErrAttachmentTooLarge)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count, "rejected uploads must not persist a record")

	files, err := store.ListAttachments()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestCreateNotificationRejectsDisallowedExtension(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)

	_, err := svc.Create(context.Background(), CreateNotificationInput{
		Name:       "Ada",
		Email:      "ada@example.com",
		Message:    "Script",
		Attachment: upload("payload.exe", []byte("MZ")),
	})
	require.ErrorIs(t, err, storage.ErrAttachmentTypeNotAllowed)
}

func TestCreateNotificationRejectsUnknownService(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)

	_, err := svc.Create(context.Background(), CreateNotificationInput{
		Name:    "Ada",
		Email:   "ada@example.com",
		Service: "Time Travel",
		Message: "hello",
	})

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Contains(t, appErr.Fields, "service")
}

func TestMarkReadAndUnread(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		Name: "Ada", Email: "ada@example.com", Message: "hi",
	})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	reloaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ReadAt)
	firstReadAt := *reloaded.ReadAt

	// Marking an already-read message again keeps the original timestamp.
	time.Sleep(10 * time.Millisecond)
	again, err := svc.MarkRead(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, again.IsRead)
	require.NotNil(t, again.ReadAt)
	require.True(t, again.ReadAt.Equal(firstReadAt))

	unread, err := svc.MarkUnread(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, unread.IsRead)
	require.Nil(t, unread.ReadAt)

	// Idempotent in the other direction too.
	unread, err = svc.MarkUnread(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, unread.IsRead)
	require.Nil(t, unread.ReadAt)
}

func TestMarkReadMissing(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)

	_, err := svc.MarkRead(context.Background(), "3f0c1c9e-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	seed := []CreateNotificationInput{
		{Name: "Grace Hopper", Email: "grace@navy.mil", Company: "US Navy", Service: "IT Consulting", Message: "compilers"},
		{Name: "Ada Lovelace", Email: "ada@example.com", Service: "AI Services", Message: "analytical engines"},
		{Name: "Alan Turing", Email: "alan@bletchley.uk", Phone: "+44 1908 640404", Message: "machinery and intelligence"},
	}
	ids := make([]string, 0, len(seed))
	for _, input := range seed {
		created, err := svc.Create(ctx, input)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	_, err := svc.MarkRead(ctx, ids[0])
	require.NoError(t, err)

	all, err := svc.List(ctx, NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	require.False(t, all[0].CreatedAt.Before(all[1].CreatedAt))

	unread, err := svc.List(ctx, NotificationFilters{IsRead: "false"})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	read, err := svc.List(ctx, NotificationFilters{IsRead: "yes"})
	require.NoError(t, err)
	require.Len(t, read, 1)
	require.Equal(t, "Grace Hopper", read[0].Name)

	// Unrecognised tokens leave the read filter off.
	everything, err := svc.List(ctx, NotificationFilters{IsRead: "maybe"})
	require.NoError(t, err)
	require.Len(t, everything, 3)

	byService, err := svc.List(ctx, NotificationFilters{Service: "AI Services"})
	require.NoError(t, err)
	require.Len(t, byService, 1)
	require.Equal(t, "Ada Lovelace", byService[0].Name)

	// Search is case-insensitive and spans name, email, phone, company, message.
	bySearch, err := svc.List(ctx, NotificationFilters{Search: "NAVY"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)

	byPhone, err := svc.List(ctx, NotificationFilters{Search: "640404"})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	require.Equal(t, "Alan Turing", byPhone[0].Name)

	none, err := svc.List(ctx, NotificationFilters{Search: "nonexistent"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	var readID string
	for i := 0; i < 3; i++ {
		created, err := svc.Create(ctx, CreateNotificationInput{
			Name: "Visitor", Email: "visitor@example.com", Message: "msg",
		})
		require.NoError(t, err)
		readID = created.ID
	}
	_, err := svc.MarkRead(ctx, readID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, NotificationFilters{})
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(1), stats.Read)
	require.Equal(t, int64(2), stats.Unread)
	require.Equal(t, stats.Total, stats.Read+stats.Unread)

	readOnly, err := svc.Stats(ctx, NotificationFilters{IsRead: "1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), readOnly.Total)
	require.Equal(t, int64(1), readOnly.Read)
	require.Zero(t, readOnly.Unread)
}

func TestUpdateNotification(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		Name: "Ada", Email: "ada@example.com", Message: "hi",
	})
	require.NoError(t, err)

	name := "Ada King"
	service := "Other"
	updated, err := svc.Update(ctx, created.ID, UpdateNotificationInput{Name: &name, Service: &service})
	require.NoError(t, err)
	require.Equal(t, "Ada King", updated.Name)
	require.Equal(t, "Other", updated.Service)
	require.Equal(t, "ada@example.com", updated.Email, "untouched fields survive partial updates")

	blank := "   "
	_, err = svc.Update(ctx, created.ID, UpdateNotificationInput{Name: &blank})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	bogus := "Time Travel"
	_, err = svc.Update(ctx, created.ID, UpdateNotificationInput{Service: &bogus})
	require.True(t, errors.As(err, &appErr))
	require.Contains(t, appErr.Fields, "service")
}

func TestDeleteNotificationRemovesFile(t *testing.T) {
	svc, store, db := newTestNotificationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		Name:       "Ada",
		Email:      "ada@example.com",
		Message:    "with file",
		Attachment: upload("notes.docx", []byte("doc")),
	})
	require.NoError(t, err)
	require.True(t, store.Exists(created.Attachment))

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.False(t, store.Exists(created.Attachment))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)

	require.ErrorIs(t, svc.Delete(ctx, created.ID), apperrors.ErrNotFound)
}

func TestReferencedAttachments(t *testing.T) {
	svc, _, _ := newTestNotificationService(t)
	ctx := context.Background()

	withFile, err := svc.Create(ctx, CreateNotificationInput{
		Name: "Ada", Email: "ada@example.com", Message: "file",
		Attachment: upload("a.png", []byte("png")),
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateNotificationInput{
		Name: "Alan", Email: "alan@example.com", Message: "no file",
	})
	require.NoError(t, err)

	refs, err := svc.ReferencedAttachments(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	_, ok := refs[withFile.Attachment]
	require.True(t, ok)
}
