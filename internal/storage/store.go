package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/vitotech/website-api/pkg/errors"
)

// DefaultMaxUploadSize caps attachments at 5 MiB unless configured otherwise.
const DefaultMaxUploadSize = 5 * 1024 * 1024

// AttachmentPrefix is the storage-relative namespace for uploaded files.
const AttachmentPrefix = "attachments"

// allowedExtensions is the closed set of accepted attachment types,
// matched case-insensitively against the text after the last dot.
var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"ppt":  {},
	"pptx": {},
	"zip":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// Errors surfaced to callers as field-level validation failures.
var (
	ErrAttachmentTooLarge = apperrors.New(
		"ATTACHMENT_TOO_LARGE",
		"File size must be less than 5MB",
		http.StatusBadRequest,
	)
	ErrAttachmentTypeNotAllowed = apperrors.New(
		"ATTACHMENT_TYPE_NOT_ALLOWED",
		fmt.Sprintf("File type not allowed. Allowed types: %s", strings.Join(AllowedExtensions(), ", ")),
		http.StatusBadRequest,
	)
)

// AllowedExtensions returns the accepted extensions in a stable order.
func AllowedExtensions() []string {
	return []string{"pdf", "doc", "docx", "ppt", "pptx", "zip", "jpg", "jpeg", "png"}
}

// Upload describes an incoming file before it has been accepted.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Store validates uploads and owns the media directory where accepted
// attachments live under AttachmentPrefix.
type Store struct {
	root    string
	maxSize int64
}

// New constructs a Store rooted at mediaRoot. A non-positive maxSize
// falls back to DefaultMaxUploadSize.
func New(mediaRoot string, maxSize int64) (*Store, error) {
	root := strings.TrimSpace(mediaRoot)
	if root == "" {
		return nil, fmt.Errorf("storage: media root is required")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if err := os.MkdirAll(filepath.Join(root, AttachmentPrefix), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create media root: %w", err)
	}
	return &Store{root: root, maxSize: maxSize}, nil
}

// Validate applies the size and extension policy and, on acceptance,
// returns the generated storage-relative path the upload will live at.
// The generated name is a random 128-bit token plus the original
// extension, so collisions with existing files are not a concern.
func (s *Store) Validate(upload Upload) (string, error) {
	if upload.Size > s.maxSize {
		return "", ErrAttachmentTooLarge
	}

	ext := extensionOf(upload.Filename)
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrAttachmentTypeNotAllowed
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return AttachmentPrefix + "/" + token + "." + ext, nil
}

// Save writes the upload's content to the previously generated path.
// Nothing is persisted when the write fails part way.
func (s *Store) Save(storagePath string, content io.Reader) error {
	full := filepath.Join(s.root, filepath.FromSlash(storagePath))

	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", storagePath, err)
	}

	if _, err := io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = os.Remove(full)
		return fmt.Errorf("storage: write %s: %w", storagePath, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("storage: close %s: %w", storagePath, err)
	}
	return nil
}

// Remove deletes a stored attachment. Missing files are not an error;
// the cleanup path is best-effort by design.
func (s *Store) Remove(storagePath string) error {
	if strings.TrimSpace(storagePath) == "" {
		return nil
	}
	full := filepath.Join(s.root, filepath.FromSlash(storagePath))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", storagePath, err)
	}
	return nil
}

// Exists reports whether the stored attachment is present on disk.
func (s *Store) Exists(storagePath string) bool {
	if strings.TrimSpace(storagePath) == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(storagePath)))
	return err == nil
}

// FilePath resolves a storage-relative path to an absolute filesystem path.
func (s *Store) FilePath(storagePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(storagePath))
}

// ListAttachments returns the storage-relative paths of every file
// currently present under the attachment namespace.
func (s *Store) ListAttachments() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, AttachmentPrefix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list attachments: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, AttachmentPrefix+"/"+entry.Name())
	}
	return paths, nil
}

// MaxSize exposes the configured upload ceiling in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

func extensionOf(filename string) string {
	name := strings.TrimSpace(filename)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
