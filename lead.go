package leadtrack

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrLeadNotFound    = errors.New("lead not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrVersionConflict = errors.New("lead was modified by another request")
)

// Status is the pipeline stage of a Lead. Any status can move to any other.
type Status string

const (
	StatusLead    Status = "Lead"
	StatusContact Status = "Contact"
	StatusOffer   Status = "Offer"
	StatusSale    Status = "Sale"
)

// Statuses lists the closed status set in pipeline order.
var Statuses = []Status{StatusLead, StatusContact, StatusOffer, StatusSale}

var legacyStatuses = map[string]Status{
	"seen":          StatusLead,
	"contacted":     StatusContact,
	"in discussion": StatusOffer,
	"bought":        StatusSale,
}

// ParseStatus resolves s to one of the known statuses. The older
// seen/contacted/in discussion/bought names are accepted as aliases and an
// empty string yields StatusLead.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return StatusLead, nil
	}
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == v {
			return st, nil
		}
	}
	if st, ok := legacyStatuses[v]; ok {
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type Lead struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	Owner     *string   `json:"owner"`
	Images    []string  `json:"images"`
	Status    Status    `json:"status"`
	Notes     *string   `json:"notes"`
	UserID    *string   `json:"userId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Normalize makes sure Images is never nil so it encodes as an empty array.
func (l *Lead) Normalize() {
	if l.Images == nil {
		l.Images = []string{}
	}
}

// NewLead is the payload accepted when creating a lead.
type NewLead struct {
	Name    *string  `json:"name"`
	Address string   `json:"address" validate:"required"`
	City    string   `json:"city" validate:"required"`
	State   string   `json:"state" validate:"required"`
	Zip     string   `json:"zip" validate:"required"`
	Owner   *string  `json:"owner"`
	Images  []string `json:"images" validate:"omitempty,dive,required"`
	Status  string   `json:"status"`
	Notes   *string  `json:"notes"`
	UserID  *string  `json:"userId"`
}

// Trim strips surrounding whitespace from the required location fields.
func (nl *NewLead) Trim() {
	nl.Address = strings.TrimSpace(nl.Address)
	nl.City = strings.TrimSpace(nl.City)
	nl.State = strings.TrimSpace(nl.State)
	nl.Zip = strings.TrimSpace(nl.Zip)
}

// LeadPatch carries a partial update. Nil fields are left untouched. When
// Version is set the update only applies if it matches the stored version.
type LeadPatch struct {
	Name    *string   `json:"name"`
	Address *string   `json:"address"`
	City    *string   `json:"city"`
	State   *string   `json:"state"`
	Zip     *string   `json:"zip"`
	Owner   *string   `json:"owner"`
	Images  *[]string `json:"images"`
	Status  *string   `json:"status"`
	Notes   *string   `json:"notes"`
	Version *int64    `json:"version"`
}

// Empty reports whether the patch changes nothing.
func (p LeadPatch) Empty() bool {
	return p.Name == nil && p.Address == nil && p.City == nil && p.State == nil &&
		p.Zip == nil && p.Owner == nil && p.Images == nil && p.Status == nil &&
		p.Notes == nil
}

// Trim strips surrounding whitespace from the location fields the patch
// sets, matching what NewLead.Trim does on create.
func (p *LeadPatch) Trim() {
	for _, v := range []*string{p.Address, p.City, p.State, p.Zip} {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
}

// BlankFields names the required location fields the patch would clear.
func (p LeadPatch) BlankFields() []string {
	var blank []string
	for _, f := range []struct {
		name string
		v    *string
	}{{"address", p.Address}, {"city", p.City}, {"state", p.State}, {"zip", p.Zip}} {
		if f.v != nil && strings.TrimSpace(*f.v) == "" {
			blank = append(blank, f.name)
		}
	}
	return blank
}

// Apply copies every non-nil field of p onto l. It fails with
// ErrInvalidStatus before touching l when the status is unknown.
func (p LeadPatch) Apply(l *Lead) error {
	if p.Status != nil {
		st, err := ParseStatus(*p.Status)
		if err != nil {
			return err
		}
		l.Status = st
	}
	if p.Name != nil {
		l.Name = p.Name
	}
	if p.Address != nil {
		l.Address = *p.Address
	}
	if p.City != nil {
		l.City = *p.City
	}
	if p.State != nil {
		l.State = *p.State
	}
	if p.Zip != nil {
		l.Zip = *p.Zip
	}
	if p.Owner != nil {
		l.Owner = p.Owner
	}
	if p.Images != nil {
		l.Images = append([]string{}, (*p.Images)...)
	}
	if p.Notes != nil {
		l.Notes = p.Notes
	}
	return nil
}

// MaxListLimit caps the page size of a list request.
const MaxListLimit = 500

// ListFilter scopes a list request. A zero Limit means no limit.
type ListFilter struct {
	UserID *string
	Limit  int
	Offset int
}

type LeadService interface {
	Create(ctx context.Context, newLead NewLead) (Lead, error)
	List(ctx context.Context, filter ListFilter) ([]Lead, error)
	GetByID(ctx context.Context, id int64) (Lead, error)
	Update(ctx context.Context, id int64, patch LeadPatch) (Lead, error)
	Delete(ctx context.Context, id int64) (Lead, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// ImageReferenced reports whether any stored lead lists url among its
	// images.
	ImageReferenced(ctx context.Context, url string) (bool, error)
}
