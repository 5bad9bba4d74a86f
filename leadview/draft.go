package leadview

import (
	"context"
	"fmt"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/geo"
)

// Saver persists a draft. *client.Client satisfies it.
type Saver interface {
	CreateLead(ctx context.Context, nl leadtrack.NewLead) (leadtrack.Lead, error)
	UpdateLead(ctx context.Context, id int64, patch leadtrack.LeadPatch) (leadtrack.Lead, error)
}

// Draft is the edit buffer of a lead detail screen. Setters only mark the
// draft dirty when they change a value, and Leave saves only dirty drafts.
// A Draft is not safe for concurrent use.
type Draft struct {
	lead  leadtrack.Lead
	dirty bool
}

// NewDraft starts editing lead. A zero ID means the lead has not been
// created yet.
func NewDraft(lead leadtrack.Lead) *Draft {
	d := &Draft{}
	d.Adopt(lead)
	return d
}

// Adopt replaces the buffer with lead and clears the dirty flag.
func (d *Draft) Adopt(lead leadtrack.Lead) {
	lead.Images = append([]string{}, lead.Images...)
	d.lead = lead
	d.dirty = false
}

// Lead returns a copy of the buffered lead.
func (d *Draft) Lead() leadtrack.Lead {
	l := d.lead
	l.Images = append([]string{}, d.lead.Images...)
	return l
}

func (d *Draft) Dirty() bool {
	return d.dirty
}

func (d *Draft) setString(field *string, v string) {
	if *field != v {
		*field = v
		d.dirty = true
	}
}

func (d *Draft) setOptional(field **string, v string) {
	if *field != nil && **field == v {
		return
	}
	if *field == nil && v == "" {
		return
	}
	*field = &v
	d.dirty = true
}

func (d *Draft) SetName(v string)    { d.setOptional(&d.lead.Name, v) }
func (d *Draft) SetAddress(v string) { d.setString(&d.lead.Address, v) }
func (d *Draft) SetCity(v string)    { d.setString(&d.lead.City, v) }
func (d *Draft) SetState(v string)   { d.setString(&d.lead.State, v) }
func (d *Draft) SetZip(v string)     { d.setString(&d.lead.Zip, v) }
func (d *Draft) SetOwner(v string)   { d.setOptional(&d.lead.Owner, v) }
func (d *Draft) SetNotes(v string)   { d.setOptional(&d.lead.Notes, v) }

// SetStatus accepts any known status name, including the legacy ones.
func (d *Draft) SetStatus(v string) error {
	st, err := leadtrack.ParseStatus(v)
	if err != nil {
		return fmt.Errorf("status %q: %w", v, err)
	}
	if d.lead.Status != st {
		d.lead.Status = st
		d.dirty = true
	}
	return nil
}

// AddImage appends url to the image list. The first image is the thumbnail.
func (d *Draft) AddImage(url string) {
	d.lead.Images = append(d.lead.Images, url)
	d.dirty = true
}

// RemoveImage drops url from the image list.
func (d *Draft) RemoveImage(url string) {
	for i, u := range d.lead.Images {
		if u == url {
			d.lead.Images = append(d.lead.Images[:i], d.lead.Images[i+1:]...)
			d.dirty = true
			return
		}
	}
}

// AddressFields exposes the location fields for geo.Autofill.
func (d *Draft) AddressFields() geo.Address {
	return addressOf(d.lead)
}

// Patch is the update the draft sends for an existing lead. It carries the
// version the draft was loaded at so a concurrent edit is reported as a
// conflict instead of being overwritten.
func (d *Draft) Patch() leadtrack.LeadPatch {
	l := d.Lead()
	status := string(l.Status)
	patch := leadtrack.LeadPatch{
		Name:    l.Name,
		Address: &l.Address,
		City:    &l.City,
		State:   &l.State,
		Zip:     &l.Zip,
		Owner:   l.Owner,
		Images:  &l.Images,
		Status:  &status,
		Notes:   l.Notes,
	}
	if l.Version > 0 {
		patch.Version = &l.Version
	}
	return patch
}

// NewLead is the create payload for a draft that has no ID yet.
func (d *Draft) NewLead() leadtrack.NewLead {
	l := d.Lead()
	return leadtrack.NewLead{
		Name:    l.Name,
		Address: l.Address,
		City:    l.City,
		State:   l.State,
		Zip:     l.Zip,
		Owner:   l.Owner,
		Images:  l.Images,
		Status:  string(l.Status),
		Notes:   l.Notes,
		UserID:  l.UserID,
	}
}

// Leave is called when the detail screen is navigated away from. A dirty
// draft is saved and the record returned by the server replaces the buffer.
// It reports whether a save happened. On error the draft stays dirty.
func (d *Draft) Leave(ctx context.Context, s Saver) (bool, error) {
	if !d.dirty {
		return false, nil
	}

	var (
		saved leadtrack.Lead
		err   error
	)
	if d.lead.ID == 0 {
		saved, err = s.CreateLead(ctx, d.NewLead())
	} else {
		saved, err = s.UpdateLead(ctx, d.lead.ID, d.Patch())
	}
	if err != nil {
		return false, err
	}

	d.Adopt(saved)
	return true, nil
}
