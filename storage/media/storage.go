package media

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/academia/lms/core"
)

const uploadsDir = "uploads"

var (
	// ImageExtensions lists the accepted image file extensions.
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

	errInvalidImageType = core.NewValidationError(nil, core.FieldError{
		Field: "image",
		Error: "Invalid file type. Allowed types: " + strings.Join(ImageExtensions, ", "),
	})
)

// Upload is a stored file.
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Storage saves uploaded files on the local filesystem, under Root, served under URL.
type Storage struct {
	root    string
	url     string
	maxSize int64
}

func NewStorage(conf *core.Config) *Storage {
	url := conf.Media.URL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return &Storage{
		root:    conf.Media.Root,
		url:     url,
		maxSize: conf.Media.MaxUploadSize,
	}
}

func (s *Storage) Root() string { return s.root }

func (s *Storage) URL() string { return s.url }

func isImage(ext string) bool {
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SaveImage stores the image read from r, named after name's extension, and returns where it is served.
func (s *Storage) SaveImage(name string, size int64, r io.Reader) (Upload, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !isImage(ext) {
		return Upload{}, errInvalidImageType
	}
	if size > s.maxSize {
		return Upload{}, s.tooLarge()
	}

	filename := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dir := filepath.Join(s.root, uploadsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Upload{}, errors.Wrap(err, "creating uploads directory")
	}
	dst := filepath.Join(dir, filename)
	f, err := os.Create(dst)
	if err != nil {
		return Upload{}, errors.Wrap(err, "creating upload file")
	}

	// the declared size may lie
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err == nil && n > s.maxSize {
		err = s.tooLarge()
	}
	if err != nil {
		_ = os.Remove(dst)
		if _, ok := err.(*core.ValidationError); ok {
			return Upload{}, err
		}
		return Upload{}, errors.Wrap(err, "writing upload file")
	}

	return Upload{
		URL:      s.url + path.Join(uploadsDir, filename),
		Filename: filename,
	}, nil
}

func (s *Storage) tooLarge() error {
	return core.NewValidationError(nil, core.FieldError{
		Field: "image",
		Error: "File size too large. Maximum size is " + humanSize(s.maxSize),
	})
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
