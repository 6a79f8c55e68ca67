package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(&config.UploadConfig{
		Dir:        t.TempDir(),
		MaxBytes:   maxBytes,
		PublicPath: "/uploads/chat/",
	})
	require.NoError(t, err)
	return store
}

// fileHeader builds a real multipart.FileHeader the way a request parse would
func fileHeader(t *testing.T, filename, mimeType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/chat/send", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func TestSaveStoresFile(t *testing.T) {
	store := newTestStore(t, 5*1024*1024)

	fh := fileHeader(t, "photo.png", "image/png", []byte("png-bytes"))
	stored, err := store.Save(fh)
	require.NoError(t, err)

	assert.Equal(t, "photo.png", stored.Name)
	assert.Equal(t, "image/png", stored.Mime)
	assert.Equal(t, int64(9), stored.Size)
	assert.True(t, strings.HasPrefix(stored.Url, "/uploads/chat/"))
	assert.True(t, strings.HasSuffix(stored.Url, "photo.png"))

	onDisk := filepath.Join(store.Dir(), filepath.Base(stored.Url))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t, 16)

	fh := fileHeader(t, "big.png", "image/png", bytes.Repeat([]byte("x"), 64))
	_, err := store.Save(fh)
	assert.Equal(t, errcode.ErrFileTooLarge, err)
}

func TestSaveRejectsDisallowedMime(t *testing.T) {
	store := newTestStore(t, 5*1024*1024)

	fh := fileHeader(t, "script.sh", "application/x-sh", []byte("#!/bin/sh"))
	_, err := store.Save(fh)
	assert.Equal(t, errcode.ErrInvalidFileType, err)
}

func TestSaveSanitizesFilename(t *testing.T) {
	store := newTestStore(t, 5*1024*1024)

	fh := fileHeader(t, "../..//evil name!.png", "image/png", []byte("x"))
	stored, err := store.Save(fh)
	require.NoError(t, err)

	base := filepath.Base(stored.Url)
	assert.NotContains(t, base, "..")
	assert.NotContains(t, base, "!")
	assert.NotContains(t, base, " ")
}
