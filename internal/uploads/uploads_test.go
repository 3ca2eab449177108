package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestExt(t *testing.T) {
	for name, want := range map[string]bool{
		"a.png": true, "B.JPG": true, "c.jpeg": true, "d.webp": true, "e.gif": true,
		"f.svg": false, "noext": false, "g.png.exe": false,
	} {
		_, ok := Ext(name)
		assert.Equal(t, want, ok, name)
	}
}

func TestName(t *testing.T) {
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	assert.Regexp(t, regexp.MustCompile(`^ad_1700000000_[0-9a-f]{8}\.png$`), s.Name("ad", "png"))
	assert.NotEqual(t, s.Name("ad", "png"), s.Name("ad", "png"))
}

func TestSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	name, err := s.Save(Ads, "ad", fileHeader(t, "Logo.PNG", []byte("png-bytes")))
	require.NoError(t, err)
	path := filepath.Join(root, Ads, name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, ".png", filepath.Ext(name))

	s.Remove(Ads, name)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// removing again or escaping the area is a no-op
	s.Remove(Ads, name)
	s.Remove(Ads, "../x")

	_, err = s.Save(Ads, "ad", fileHeader(t, "evil.svg", []byte("<svg/>")))
	assert.ErrorIs(t, err, ErrBadExtension)
}
