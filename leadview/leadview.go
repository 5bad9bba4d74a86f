// Package leadview holds the rules a client applies to leads it has fetched:
// filtering, ordering, map markers, CSV export and the edit buffer behind a
// lead detail screen.
package leadview

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/geo"
)

// Filter narrows a lead set. Zero fields match everything. The same filter
// drives both the list and the map view.
type Filter struct {
	Status    leadtrack.Status
	City      string
	HasImages bool
	Query     string
}

func (f Filter) match(l leadtrack.Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if city := strings.TrimSpace(f.City); city != "" && !strings.EqualFold(strings.TrimSpace(l.City), city) {
		return false
	}
	if f.HasImages && len(l.Images) == 0 {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(l.Address), strings.ToLower(q)) {
		return false
	}
	return true
}

// Apply returns the leads matching f in their original order.
func (f Filter) Apply(leads []leadtrack.Lead) []leadtrack.Lead {
	out := make([]leadtrack.Lead, 0, len(leads))
	for _, l := range leads {
		if f.match(l) {
			out = append(out, l)
		}
	}
	return out
}

// SortByStatus returns a copy of leads with those in status first. The
// relative order inside each group is kept.
func SortByStatus(leads []leadtrack.Lead, status leadtrack.Status) []leadtrack.Lead {
	out := append([]leadtrack.Lead(nil), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status == status && out[j].Status != status
	})
	return out
}

// Marker pins a lead on the map.
type Marker struct {
	LeadID   int64
	Title    string
	Status   leadtrack.Status
	Position geo.Coordinate
}

// Markers geocodes each lead and returns one marker per lead that resolved.
// Leads the geocoder cannot place are skipped; a context error stops the
// run and is returned with the markers found so far.
func Markers(ctx context.Context, leads []leadtrack.Lead, g geo.Geocoder) ([]Marker, error) {
	markers := make([]Marker, 0, len(leads))
	for _, l := range leads {
		pos, err := g.Forward(ctx, addressOf(l).Query())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return markers, ctxErr
			}
			continue
		}
		markers = append(markers, Marker{
			LeadID:   l.ID,
			Title:    title(l),
			Status:   l.Status,
			Position: pos,
		})
	}
	return markers, nil
}

func title(l leadtrack.Lead) string {
	if l.Name != nil && strings.TrimSpace(*l.Name) != "" {
		return *l.Name
	}
	return l.Address
}

func addressOf(l leadtrack.Lead) geo.Address {
	return geo.Address{Street: l.Address, City: l.City, State: l.State, Zip: l.Zip}
}

var csvHeader = []string{"name", "address", "city", "state", "zip", "owner", "status"}

// ExportCSV writes leads with a header row and a fixed column order.
func ExportCSV(w io.Writer, leads []leadtrack.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, l := range leads {
		record := []string{deref(l.Name), l.Address, l.City, l.State, l.Zip, deref(l.Owner), string(l.Status)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write lead %d: %w", l.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Collection is the ordered set of leads a client currently shows.
type Collection struct {
	leads []leadtrack.Lead
}

func NewCollection(leads []leadtrack.Lead) *Collection {
	return &Collection{leads: append([]leadtrack.Lead(nil), leads...)}
}

// Leads returns a copy of the collection in order.
func (c *Collection) Leads() []leadtrack.Lead {
	return append([]leadtrack.Lead(nil), c.leads...)
}

func (c *Collection) Len() int {
	return len(c.leads)
}

// Get returns the lead with id.
func (c *Collection) Get(id int64) (leadtrack.Lead, bool) {
	for _, l := range c.leads {
		if l.ID == id {
			return l, true
		}
	}
	return leadtrack.Lead{}, false
}

// Merge replaces the lead with the same id or appends it.
func (c *Collection) Merge(lead leadtrack.Lead) {
	for i := range c.leads {
		if c.leads[i].ID == lead.ID {
			c.leads[i] = lead
			return
		}
	}
	c.leads = append(c.leads, lead)
}

// Remove drops the lead with id and reports whether it was present.
func (c *Collection) Remove(id int64) bool {
	for i := range c.leads {
		if c.leads[i].ID == id {
			c.leads = append(c.leads[:i], c.leads[i+1:]...)
			return true
		}
	}
	return false
}
