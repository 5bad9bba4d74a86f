package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/metrics"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type LeadHandler struct {
	service leadtrack.LeadService
	images  leadtrack.ImageStore
	metrics *metrics.Metrics
	log     *otelzap.SugaredLogger
}

func NewLeadHandler(service leadtrack.LeadService, images leadtrack.ImageStore, m *metrics.Metrics, log *otelzap.SugaredLogger) *LeadHandler {
	return &LeadHandler{
		service: service,
		images:  images,
		metrics: m,
		log:     log,
	}
}

// List handles GET /api/leads.
func (lh LeadHandler) List(rw http.ResponseWriter, r *http.Request) {
	lh.list(rw, r, nil)
}

// ListByUser handles GET /api/leads/{id}, where the path segment is the
// owning user's id.
func (lh LeadHandler) ListByUser(rw http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	lh.list(rw, r, &userID)
}

func (lh LeadHandler) list(rw http.ResponseWriter, r *http.Request, userID *string) {
	ctx := r.Context()

	filter, err := listFilter(r)
	if err != nil {
		lh.reject(rw, r, "pagination", http.StatusBadRequest, err)
		return
	}
	filter.UserID = userID

	leads, err := lh.service.List(ctx, filter)
	if err != nil {
		lh.log.Ctx(ctx).Errorw("List", "error", err.Error())
		respondInternal(ctx, rw)
		return
	}

	for i := range leads {
		leads[i].Normalize()
	}
	respond(ctx, rw, http.StatusOK, leads)
}

func listFilter(r *http.Request) (leadtrack.ListFilter, error) {
	var f leadtrack.ListFilter
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if f.Limit > leadtrack.MaxListLimit {
		f.Limit = leadtrack.MaxListLimit
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

// Create handles POST /api/leads.
func (lh LeadHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var nl leadtrack.NewLead
	if err := decode(r, &nl); err != nil {
		lh.reject(rw, r, "decode", http.StatusBadRequest, err)
		return
	}
	nl.Trim()

	if err := checkStruct(ctx, nl); err != nil {
		lh.reject(rw, r, "validation", http.StatusBadRequest, err)
		return
	}
	if _, err := leadtrack.ParseStatus(nl.Status); err != nil {
		lh.reject(rw, r, "status", http.StatusBadRequest, err)
		return
	}

	lead, err := lh.service.Create(ctx, nl)
	if err != nil {
		if errors.Is(err, leadtrack.ErrInvalidStatus) {
			lh.reject(rw, r, "status", http.StatusBadRequest, err)
			return
		}
		lh.log.Ctx(ctx).Errorw("Create", "error", err.Error())
		respondInternal(ctx, rw)
		return
	}

	lh.metrics.LeadsCreated.Inc()
	lead.Normalize()
	respond(ctx, rw, http.StatusCreated, lead)
}

// Update handles PUT /api/leads/{id}. Only the supplied fields change and
// the stored record is returned. A body that changes nothing leaves the
// record and its version alone.
func (lh LeadHandler) Update(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := idParam(r)
	if err != nil {
		lh.reject(rw, r, "id", http.StatusBadRequest, err)
		return
	}

	var patch leadtrack.LeadPatch
	if err := decode(r, &patch); err != nil {
		lh.reject(rw, r, "decode", http.StatusBadRequest, err)
		return
	}
	patch.Trim()

	if patch.Empty() {
		lh.current(rw, r, id, patch.Version)
		return
	}
	if blank := patch.BlankFields(); len(blank) > 0 {
		lh.reject(rw, r, "validation", http.StatusBadRequest, missingFields(blank...))
		return
	}
	if patch.Status != nil {
		if _, err := leadtrack.ParseStatus(*patch.Status); err != nil {
			lh.reject(rw, r, "status", http.StatusBadRequest, err)
			return
		}
	}

	lead, err := lh.service.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, leadtrack.ErrLeadNotFound):
			lh.reject(rw, r, "not_found", http.StatusNotFound, err)
		case errors.Is(err, leadtrack.ErrVersionConflict):
			lh.reject(rw, r, "conflict", http.StatusConflict, err)
		case errors.Is(err, leadtrack.ErrInvalidStatus):
			lh.reject(rw, r, "status", http.StatusBadRequest, err)
		default:
			lh.log.Ctx(ctx).Errorw("Update", "id", id, "error", err.Error())
			respondInternal(ctx, rw)
		}
		return
	}

	lead.Normalize()
	respond(ctx, rw, http.StatusOK, lead)
}

func (lh LeadHandler) current(rw http.ResponseWriter, r *http.Request, id int64, version *int64) {
	ctx := r.Context()

	lead, err := lh.service.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, leadtrack.ErrLeadNotFound) {
			lh.reject(rw, r, "not_found", http.StatusNotFound, err)
			return
		}
		lh.log.Ctx(ctx).Errorw("Update", "id", id, "error", err.Error())
		respondInternal(ctx, rw)
		return
	}
	if version != nil && *version != lead.Version {
		lh.reject(rw, r, "conflict", http.StatusConflict, leadtrack.ErrVersionConflict)
		return
	}

	lead.Normalize()
	respond(ctx, rw, http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/{id} and removes the lead's uploaded
// image files once the row is gone. Files another lead still lists are kept.
func (lh LeadHandler) Delete(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := idParam(r)
	if err != nil {
		lh.reject(rw, r, "id", http.StatusBadRequest, err)
		return
	}

	lead, err := lh.service.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, leadtrack.ErrLeadNotFound) {
			lh.reject(rw, r, "not_found", http.StatusNotFound, err)
			return
		}
		lh.log.Ctx(ctx).Errorw("Delete", "id", id, "error", err.Error())
		respondInternal(ctx, rw)
		return
	}
	lh.metrics.LeadsDeleted.Inc()

	for _, url := range lead.Images {
		shared, err := lh.service.ImageReferenced(ctx, url)
		if err != nil {
			lh.metrics.OrphanCleanupFailures.Inc()
			lh.log.Ctx(ctx).Warnw("Delete", "id", id, "image", url, "error", err.Error())
			continue
		}
		if shared {
			continue
		}
		if err := lh.images.Remove(ctx, url); err != nil {
			lh.metrics.OrphanCleanupFailures.Inc()
			lh.log.Ctx(ctx).Warnw("Delete", "id", id, "image", url, "error", err.Error())
		}
	}

	respond(ctx, rw, http.StatusOK, map[string]string{
		"message": "Lead deleted successfully",
	})
}

// Stats handles GET /api/stats.
func (lh LeadHandler) Stats(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := lh.service.CountByStatus(ctx)
	if err != nil {
		lh.log.Ctx(ctx).Errorw("Stats", "error", err.Error())
		respondInternal(ctx, rw)
		return
	}

	respond(ctx, rw, http.StatusOK, leadtrack.ComputeStats(counts))
}

func (lh LeadHandler) reject(rw http.ResponseWriter, r *http.Request, reason string, status int, err error) {
	ctx := r.Context()
	lh.metrics.RequestsRejected.WithLabelValues(reason).Inc()
	lh.log.Ctx(ctx).Infow("rejected", "path", r.URL.Path, "reason", reason, "error", err.Error())
	respondErr(ctx, rw, status, err)
}
