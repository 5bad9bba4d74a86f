// Package filestore stores uploaded lead images on local disk and serves
// them back over HTTP.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phbpx/leadtrack"
)

// Config is the required properties to store images.
type Config struct {
	Dir          string
	PublicPath   string
	MaxFileBytes int64
}

// Store writes images as <unix-millis>-<name> under Dir and hands out
// URLs rooted at PublicPath.
type Store struct {
	dir        string
	publicPath string
	maxBytes   int64
	now        func() time.Time
}

// New creates the upload directory when it is missing.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	public := "/" + strings.Trim(cfg.PublicPath, "/")
	return &Store{
		dir:        cfg.Dir,
		publicPath: public,
		maxBytes:   cfg.MaxFileBytes,
		now:        time.Now,
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitize reduces an uploaded file name to a safe base name.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return uuid.NewString()
	}
	return name
}

// imageExts maps the image types http.DetectContentType reports to the
// extension files of that type are stored with.
var imageExts = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/x-icon":             ".ico",
	"image/avif":               ".avif",
	"image/vnd.microsoft.icon": ".ico",
}

// storedName keeps the client's base name but replaces its extension with
// the one matching the sniffed content type.
func storedName(name, ext string) string {
	base := sanitize(name)
	if stem := strings.TrimRight(strings.TrimSuffix(base, filepath.Ext(base)), "._"); stem != "" {
		base = stem
	}
	return base + ext
}

// sniff reads up to 512 bytes from r and reports the detected content type.
func sniff(r io.Reader) ([]byte, string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	return head, http.DetectContentType(head), nil
}

// Save copies r to disk and returns its public URL. Only content sniffed as
// an image is accepted, and the stored file name carries the extension of
// the sniffed type whatever the client called it.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	head, ctype, err := sniff(r)
	if err != nil {
		return "", err
	}
	ext, ok := imageExts[ctype]
	if !ok {
		return "", leadtrack.ErrUnsupportedImage
	}
	name = storedName(name, ext)

	filename := fmt.Sprintf("%d-%s", s.now().UnixMilli(), name)
	target := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			filename = fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString()[:8], name)
			target = filepath.Join(s.dir, filename)
			f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		}
		if err != nil {
			return "", err
		}
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}

	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = leadtrack.ErrImageTooLarge
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(target)
		return "", err
	}

	return path.Join(s.publicPath, filename), nil
}

// Remove deletes the file behind url. URLs outside PublicPath are ignored
// and a missing file is not an error.
func (s *Store) Remove(_ context.Context, url string) error {
	filename, ok := s.filename(url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) filename(url string) (string, bool) {
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", false
		}
		url = rest[slash:]
	}

	prefix := s.publicPath + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.Contains(name, "/") || name == ".." || name == "." {
		return "", false
	}
	return name, true
}

// PublicPath is the URL prefix images are served under.
func (s *Store) PublicPath() string {
	return s.publicPath
}

// Handler serves GET {PublicPath}/{filename}. The Content-Type comes from
// the file's bytes, never its name, and anything that does not sniff as an
// image is sent as an opaque download.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		name, ok := s.filename(req.URL.Path)
		if !ok || strings.HasPrefix(name, ".") {
			http.NotFound(rw, req)
			return
		}

		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			http.NotFound(rw, req)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(rw, req)
			return
		}

		_, ctype, err := sniff(f)
		if err == nil {
			_, err = f.Seek(0, io.SeekStart)
		}
		if err != nil {
			http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if _, ok := imageExts[ctype]; !ok {
			ctype = "application/octet-stream"
		}

		rw.Header().Set("Content-Type", ctype)
		rw.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(rw, req, name, info.ModTime(), f)
	})
}
