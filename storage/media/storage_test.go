package media

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
)

func newTestStorage(t *testing.T, maxSize int64) *Storage {
	conf := &core.Config{Media: core.MediaConfig{Root: t.TempDir(), URL: "/media", MaxUploadSize: maxSize}}
	return NewStorage(conf)
}

func TestStorage_SaveImage(t *testing.T) {
	s := newTestStorage(t, 8)

	up, err := s.SaveImage("Me.PNG", 4, bytes.NewBufferString("png!"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(up.Filename, ".png"))
	assert.Len(t, up.Filename, 32+len(".png"))
	assert.Equal(t, "/media/uploads/"+up.Filename, up.URL)

	data, err := os.ReadFile(filepath.Join(s.Root(), "uploads", up.Filename))
	require.NoError(t, err)
	assert.Equal(t, "png!", string(data))
}

func TestStorage_SaveImage_invalid(t *testing.T) {
	s := newTestStorage(t, 8)

	tests := []struct {
		name    string
		file    string
		size    int64
		content string
		wantErr string
	}{
		{name: "extension", file: "doc.pdf", size: 3, content: "pdf", wantErr: "Invalid file type. Allowed types: .jpg, .jpeg, .png, .gif, .webp"},
		{name: "no extension", file: "image", size: 3, content: "img", wantErr: "Invalid file type"},
		{name: "declared size", file: "big.jpg", size: 9, content: "123456789", wantErr: "File size too large. Maximum size is 8 bytes"},
		{name: "actual size", file: "liar.jpg", size: 1, content: "123456789", wantErr: "File size too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveImage(tt.file, tt.size, bytes.NewBufferString(tt.content))
			require.Error(t, err)
			assert.IsType(t, &core.ValidationError{}, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	entries, _ := os.ReadDir(filepath.Join(s.Root(), "uploads"))
	assert.Empty(t, entries)
}

func Test_humanSize(t *testing.T) {
	assert.Equal(t, "5MB", humanSize(5*1024*1024))
	assert.Equal(t, "100 bytes", humanSize(100))
}
