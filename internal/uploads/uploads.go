// Package uploads stores user images under per-area directories of one root.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"muzikuj/internal/logging"
)

// Areas, one directory each.
const (
	Profiles     = "profilovky"
	UserGallery  = "galeria_pouzivatel"
	GroupProfile = "profilovky_skupina"
	GroupGallery = "galeria_skupina"
	Classifieds  = "inzeraty"
	Ads          = "reklamy"
	Events       = "podujatia"
)

// MaxFileSize bounds a single uploaded image.
const MaxFileSize = 8 << 20

var ErrBadExtension = errors.New("unsupported image type")

var allowed = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true}

// Ext returns the lowercased extension of name when it is an allowed image type.
func Ext(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext, allowed[ext]
}

type Store struct {
	root string
	now  func() time.Time
}

func NewStore(root string) *Store {
	return &Store{root: root, now: time.Now}
}

func (s *Store) Root() string { return s.root }

// Name builds <prefix>_<unix>_<hex>.<ext>.
func (s *Store) Name(prefix, ext string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s.%s", prefix, s.now().Unix(), hex, ext)
}

// Save copies an uploaded file into area and returns the stored file name.
func (s *Store) Save(area, prefix string, fh *multipart.FileHeader) (string, error) {
	ext, ok := Ext(fh.Filename)
	if !ok {
		return "", ErrBadExtension
	}
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("file %s too large", fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return s.write(area, s.Name(prefix, ext), src)
}

func (s *Store) write(area, name string, src io.Reader) (string, error) {
	dir := filepath.Join(s.root, area)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, io.LimitReader(src, MaxFileSize+1)); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	return name, dst.Close()
}

// Remove deletes a stored file. Missing files and errors are only logged.
func (s *Store) Remove(area, name string) {
	if name == "" || name != filepath.Base(name) {
		return
	}
	err := os.Remove(filepath.Join(s.root, area, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Str("area", area).Str("file", name).Msg("upload remove failed")
	}
}
