package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	return store
}

func TestValidateAcceptsAllowedExtensionCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Validate(Upload{Filename: "Proposal.PDF", Size: 1024})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, AttachmentPrefix+"/"))
	require.True(t, strings.HasSuffix(path, ".pdf"))
}

func TestValidateRejectsOversizedUpload(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Validate(Upload{Filename: "big.pdf", Size: DefaultMaxUploadSize + 1})
	require.ErrorIs(t, err, ErrAttachmentTooLarge)
}

func TestValidateRejectsDisallowedExtension(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"script.exe", "noext", "archive.tar.gz", "trailingdot."} {
		_, err := store.Validate(Upload{Filename: name, Size: 10})
		require.ErrorIs(t, err, ErrAttachmentTypeNotAllowed, name)
	}
}

func TestValidateGeneratesUniquePaths(t *testing.T) {
	store := newTestStore(t)

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		path, err := store.Validate(Upload{Filename: "resume.docx", Size: 10})
		require.NoError(t, err)
		_, dup := seen[path]
		require.False(t, dup, "duplicate path %s", path)
		seen[path] = struct{}{}
	}
}

func TestSaveRemoveRoundTrip(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Validate(Upload{Filename: "logo.png", Size: 4})
	require.NoError(t, err)

	require.NoError(t, store.Save(path, strings.NewReader("data")))
	require.True(t, store.Exists(path))

	listed, err := store.ListAttachments()
	require.NoError(t, err)
	require.Contains(t, listed, path)

	require.NoError(t, store.Remove(path))
	require.False(t, store.Exists(path))
}

func TestRemoveMissingFileIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Remove(AttachmentPrefix+"/gone.pdf"))
	require.NoError(t, store.Remove(""))
}
