package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"regexp"
	"strings"
	"time"

	"trinetra/pkg/types"
)

// Store persists files and returns a URL the file can later be fetched from.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a URL returned by Put back to its key.
	KeyFromURL(url string) (string, bool)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName reduces name to a filesystem and URL safe base name.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// ObjectKey builds subfolder/<unix millis>_<name>.
func ObjectKey(subfolder, name string, now time.Time) string {
	return fmt.Sprintf("%s/%d_%s", subfolder, now.UnixMilli(), SafeName(name))
}

// SaveUpload reads a multipart file and stores it under subfolder.
func SaveUpload(ctx context.Context, store Store, subfolder string, fh *multipart.FileHeader) (types.StoredFile, error) {
	f, err := fh.Open()
	if err != nil {
		return types.StoredFile{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return types.StoredFile{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(subfolder, fh.Filename, time.Now())
	url, err := store.Put(ctx, key, body, contentType)
	if err != nil {
		return types.StoredFile{}, err
	}

	return types.StoredFile{Key: key, URL: url, OriginalFilename: fh.Filename}, nil
}

var dataURLPattern = regexp.MustCompile(`^data:(image/([a-zA-Z0-9.+-]+));base64,(.+)$`)

// SaveDataURL decodes a base64 image data URL and stores it as
// subfolder/<name>_<unix millis>.<ext>.
func SaveDataURL(ctx context.Context, store Store, dataURL, subfolder, name string) (types.StoredFile, error) {
	m := dataURLPattern.FindStringSubmatch(strings.TrimSpace(dataURL))
	if m == nil {
		return types.StoredFile{}, types.Invalid("Image data is not a valid base64 data URL.")
	}

	body, err := base64.StdEncoding.DecodeString(m[3])
	if err != nil {
		return types.StoredFile{}, types.Invalid("Image data is not valid base64.")
	}

	ext := m[2]
	if ext == "jpeg" {
		ext = "jpg"
	}

	key := fmt.Sprintf("%s/%s_%d.%s", subfolder, SafeName(name), time.Now().UnixMilli(), SafeName(ext))
	url, err := store.Put(ctx, key, body, m[1])
	if err != nil {
		return types.StoredFile{}, err
	}

	return types.StoredFile{Key: key, URL: url}, nil
}

// Images adapts a Store to the data URL saver used by reconciliation.
type Images struct {
	Store Store
}

func (i Images) SaveDataURL(ctx context.Context, dataURL, subfolder, name string) (types.StoredFile, error) {
	return SaveDataURL(ctx, i.Store, dataURL, subfolder, name)
}

// MultipartUploads exposes the files of a parsed multipart form by field name.
type MultipartUploads struct {
	files map[string][]*multipart.FileHeader
	store Store
}

func NewMultipartUploads(form *multipart.Form, store Store) *MultipartUploads {
	files := map[string][]*multipart.FileHeader{}
	if form != nil && form.File != nil {
		files = form.File
	}
	return &MultipartUploads{files: files, store: store}
}

func (u *MultipartUploads) Has(key string) bool {
	fhs := u.files[key]
	return len(fhs) > 0 && fhs[0].Size > 0
}

func (u *MultipartUploads) Save(ctx context.Context, key, subfolder string) (types.StoredFile, error) {
	if !u.Has(key) {
		return types.StoredFile{}, fmt.Errorf("no upload for %s", key)
	}
	return SaveUpload(ctx, u.store, subfolder, u.files[key][0])
}

// reader wraps body for clients that take an io.Reader.
func reader(body []byte) io.Reader {
	return bytes.NewReader(body)
}
