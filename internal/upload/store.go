package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/google/uuid"
)

var defaultAllowedMime = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// Store writes chat attachments to local disk and hands back the public URL
// path the client embeds in the message.
type Store struct {
	dir        string
	maxBytes   int64
	publicPath string
	allowed    map[string]bool
}

// StoredFile describes a persisted attachment.
type StoredFile struct {
	Url  string
	Name string
	Mime string
	Size int64
}

// NewStore creates the upload directory if needed.
func NewStore(cfg *config.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	mimes := cfg.AllowedMime
	if len(mimes) == 0 {
		mimes = defaultAllowedMime
	}
	allowed := make(map[string]bool, len(mimes))
	for _, m := range mimes {
		allowed[strings.ToLower(m)] = true
	}

	return &Store{
		dir:        cfg.Dir,
		maxBytes:   cfg.MaxBytes,
		publicPath: cfg.PublicPath,
		allowed:    allowed,
	}, nil
}

// Save validates and persists one multipart attachment. Validation failures
// map to the upload error codes so handlers can reject before anything is
// written.
func (s *Store) Save(fh *multipart.FileHeader) (*StoredFile, error) {
	if fh.Size > s.maxBytes {
		return nil, errcode.ErrFileTooLarge
	}

	mimeType := strings.ToLower(fh.Header.Get("Content-Type"))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !s.allowed[mimeType] {
		return nil, errcode.ErrInvalidFileType
	}

	src, err := fh.Open()
	if err != nil {
		return nil, errcode.ErrUploadFailed.Wrap(err)
	}
	defer src.Close()

	// Random prefix keeps colliding client filenames apart
	name := fmt.Sprintf("%s-%s", uuid.NewString(), sanitizeName(fh.Filename))
	dstPath := filepath.Join(s.dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, errcode.ErrUploadFailed.Wrap(err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		_ = os.Remove(dstPath)
		return nil, errcode.ErrUploadFailed.Wrap(err)
	}
	if written > s.maxBytes {
		_ = os.Remove(dstPath)
		return nil, errcode.ErrFileTooLarge
	}

	return &StoredFile{
		Url:  path.Join(s.publicPath, name),
		Name: fh.Filename,
		Mime: mimeType,
		Size: written,
	}, nil
}

// Dir returns the on-disk directory, used to mount the static file route.
func (s *Store) Dir() string {
	return s.dir
}

// PublicPath returns the URL prefix attachments are served under.
func (s *Store) PublicPath() string {
	return s.publicPath
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
