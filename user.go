package leadtrack

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNoFiles          = errors.New("no files uploaded")
	ErrUnsupportedImage = errors.New("unsupported file type")
	ErrImageTooLarge    = errors.New("file too large")
)

// User is an account from the external identity provider. Leads reference
// it weakly through Lead.UserID.
type User struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserService interface {
	Upsert(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// ImageStore persists uploaded images and issues public URLs for them.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
	PublicPath() string
	Handler() http.Handler
}
