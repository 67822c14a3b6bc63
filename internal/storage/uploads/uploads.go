package uploads

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxImageSize bounds a single uploaded profile image.
const MaxImageSize = 5 << 20

var (
	ErrInvalidImage    = errors.New("invalid image data")
	ErrImageTooLarge   = errors.New("image too large")
	ErrFileNotExists   = errors.New("file does not exist")
	ErrInvalidFileName = errors.New("invalid file name")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type ImageStore interface {
	SaveImage(image []byte) (string, error)
	DeleteImage(filename string) error
}

type Uploads struct {
	folderPath string
	mu         sync.Mutex
}

func NewUploads(folderPath string) (*Uploads, error) {
	if folderPath == "" {
		return nil, errors.New("folder path is empty")
	}

	u := &Uploads{folderPath: filepath.Clean(folderPath)}

	if err := os.MkdirAll(u.folderPath, 0o755); err != nil {
		return nil, err
	}

	return u, nil
}

func (u *Uploads) Dir() string {
	return u.folderPath
}

// SaveImage sniffs the content type, stores the bytes under a fresh uuid
// name and returns that name.
func (u *Uploads) SaveImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrInvalidImage
	}
	if len(image) > MaxImageSize {
		return "", ErrImageTooLarge
	}

	ext, ok := extensions[http.DetectContentType(image)]
	if !ok {
		return "", ErrInvalidImage
	}

	filename := uuid.NewString() + ext
	fullPath := filepath.Join(u.folderPath, filename)

	u.mu.Lock()
	defer u.mu.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, image, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to write image data: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	return filename, nil
}

func (u *Uploads) DeleteImage(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return ErrInvalidFileName
	}

	fullPath := filepath.Join(u.folderPath, filename)

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return ErrFileNotExists
	}

	return os.Remove(fullPath)
}
