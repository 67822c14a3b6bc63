package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewUploads(t *testing.T) {
	t.Run("creates nested folder", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")

		u, err := NewUploads(dir)
		require.NoError(t, err)
		assert.NotNil(t, u)

		_, err = os.Stat(dir)
		assert.NoError(t, err)
	})

	t.Run("empty folder path", func(t *testing.T) {
		u, err := NewUploads("")
		assert.Error(t, err)
		assert.Nil(t, u)
	})
}

func TestSaveImage(t *testing.T) {
	u, err := NewUploads(t.TempDir())
	require.NoError(t, err)

	t.Run("png", func(t *testing.T) {
		name, err := u.SaveImage(pngHeader)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ".png"))

		data, err := os.ReadFile(filepath.Join(u.Dir(), name))
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	t.Run("unique names", func(t *testing.T) {
		a, err := u.SaveImage(pngHeader)
		require.NoError(t, err)
		b, err := u.SaveImage(pngHeader)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := u.SaveImage(nil)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := u.SaveImage([]byte("plain text, not a picture"))
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("too large", func(t *testing.T) {
		big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxImageSize)...)
		_, err := u.SaveImage(big)
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})
}

func TestDeleteImage(t *testing.T) {
	u, err := NewUploads(t.TempDir())
	require.NoError(t, err)

	name, err := u.SaveImage(pngHeader)
	require.NoError(t, err)

	assert.NoError(t, u.DeleteImage(name))
	assert.ErrorIs(t, u.DeleteImage(name), ErrFileNotExists)
	assert.ErrorIs(t, u.DeleteImage("../etc/passwd"), ErrInvalidFileName)
	assert.ErrorIs(t, u.DeleteImage(""), ErrInvalidFileName)
}
