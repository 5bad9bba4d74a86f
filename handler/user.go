package handler

import (
	"net/http"
	"strings"

	"github.com/phbpx/leadtrack"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type UserHandler struct {
	service leadtrack.UserService
	log     *otelzap.SugaredLogger
}

func NewUserHandler(service leadtrack.UserService, log *otelzap.SugaredLogger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

// Create handles POST /api/users. Signing in again with a known id
// refreshes the stored profile.
func (uh UserHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var u leadtrack.User
	if err := decode(r, &u); err != nil {
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)

	if err := checkStruct(ctx, u); err != nil {
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	user, err := uh.service.Upsert(ctx, u)
	if err != nil {
		uh.log.Ctx(ctx).Errorw("CreateUser", "id", u.ID, "error", err.Error())
		respondInternal(ctx, rw)
		return
	}

	respond(ctx, rw, http.StatusCreated, user)
}
