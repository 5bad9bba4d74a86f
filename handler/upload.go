package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/metrics"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// uploadFields are the multipart field names accepted for image files.
var uploadFields = []string{"images", "image", "file"}

type UploadHandler struct {
	images   leadtrack.ImageStore
	maxBytes int64
	metrics  *metrics.Metrics
	log      *otelzap.SugaredLogger
}

func NewUploadHandler(images leadtrack.ImageStore, maxBodyBytes int64, m *metrics.Metrics, log *otelzap.SugaredLogger) *UploadHandler {
	return &UploadHandler{
		images:   images,
		maxBytes: maxBodyBytes,
		metrics:  m,
		log:      log,
	}
}

// Upload handles POST /api/upload. It only stores files and answers with
// their URLs; attaching them to a lead is a separate create or update call.
// Any lead fields in the form are ignored.
func (uh UploadHandler) Upload(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if uh.maxBytes > 0 {
		r.Body = http.MaxBytesReader(rw, r.Body, uh.maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		uh.reject(rw, r, "multipart", http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []*multipart.FileHeader
	for _, field := range uploadFields {
		files = append(files, r.MultipartForm.File[field]...)
	}
	if len(files) == 0 {
		uh.reject(rw, r, "no_files", http.StatusBadRequest, leadtrack.ErrNoFiles)
		return
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := uh.save(ctx, fh)
		if err != nil {
			uh.discard(ctx, urls)
			switch {
			case errors.Is(err, leadtrack.ErrUnsupportedImage), errors.Is(err, leadtrack.ErrImageTooLarge):
				uh.reject(rw, r, "file", http.StatusBadRequest, err)
			default:
				uh.log.Ctx(ctx).Errorw("Upload", "file", fh.Filename, "error", err.Error())
				respondInternal(ctx, rw)
			}
			return
		}
		urls = append(urls, url)
	}

	uh.metrics.ImagesUploaded.Add(float64(len(urls)))
	respond(ctx, rw, http.StatusCreated, map[string][]string{
		"imageUrls": urls,
	})
}

func (uh UploadHandler) save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return uh.images.Save(ctx, fh.Filename, f)
}

// discard removes files already stored for a request that failed part way.
func (uh UploadHandler) discard(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := uh.images.Remove(ctx, url); err != nil {
			uh.metrics.OrphanCleanupFailures.Inc()
			uh.log.Ctx(ctx).Warnw("Upload", "image", url, "error", err.Error())
		}
	}
}

func (uh UploadHandler) reject(rw http.ResponseWriter, r *http.Request, reason string, status int, err error) {
	uh.metrics.RequestsRejected.WithLabelValues(reason).Inc()
	uh.log.Ctx(r.Context()).Infow("rejected", "path", r.URL.Path, "reason", reason, "error", err.Error())
	respondErr(r.Context(), rw, status, err)
}
