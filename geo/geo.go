// Package geo turns coordinates into lead addresses and back, and records
// the route driven while looking for properties.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

var ErrNoResults = errors.New("no geocoding results")

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Address holds the location fields of a lead.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Query renders the address as a single line for forward geocoding.
func (a Address) Query() string {
	var parts []string
	for _, p := range []string{a.Street, a.City, strings.TrimSpace(a.State + " " + a.Zip)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Geocoder interface {
	Reverse(ctx context.Context, c Coordinate) (Address, error)
	Forward(ctx context.Context, query string) (Coordinate, error)
}

// GoogleGeocoder resolves addresses with the Google Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client
}

// NewGoogleGeocoder builds a geocoder authenticated with apiKey. Extra
// options are passed to the maps client.
func NewGoogleGeocoder(apiKey string, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, errors.New("maps api key is required")
	}

	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &GoogleGeocoder{client: client}, nil
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, c Coordinate) (Address, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: c.Lat, Lng: c.Lng},
	})
	if err != nil {
		return Address{}, fmt.Errorf("reverse geocode %s: %w", c, err)
	}
	if len(results) == 0 {
		return Address{}, ErrNoResults
	}
	return addressOf(results[0].AddressComponents), nil
}

func (g *GoogleGeocoder) Forward(ctx context.Context, query string) (Coordinate, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		return Coordinate{}, ErrNoResults
	}
	loc := results[0].Geometry.Location
	return Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func addressOf(components []maps.AddressComponent) Address {
	var (
		addr           Address
		number, street string
		town           string
	)
	for _, c := range components {
		for _, t := range c.Types {
			switch t {
			case "street_number":
				number = c.LongName
			case "route":
				street = c.LongName
			case "locality":
				addr.City = c.LongName
			case "postal_town", "sublocality":
				if town == "" {
					town = c.LongName
				}
			case "administrative_area_level_1":
				addr.State = c.ShortName
			case "postal_code":
				addr.Zip = c.LongName
			}
		}
	}
	if addr.City == "" {
		addr.City = town
	}
	addr.Street = strings.TrimSpace(number + " " + street)
	return addr
}

// Form is an editable set of lead address fields.
type Form interface {
	AddressFields() Address
	SetAddress(string)
	SetCity(string)
	SetState(string)
	SetZip(string)
}

// Autofill copies addr into the fields of form that are still empty and
// returns the names of the fields it filled. Typed values are never
// overwritten.
func Autofill(form Form, addr Address) []string {
	current := form.AddressFields()

	var filled []string
	for _, f := range []struct {
		name     string
		have, to string
		set      func(string)
	}{
		{"address", current.Street, addr.Street, form.SetAddress},
		{"city", current.City, addr.City, form.SetCity},
		{"state", current.State, addr.State, form.SetState},
		{"zip", current.Zip, addr.Zip, form.SetZip},
	} {
		if strings.TrimSpace(f.have) != "" || strings.TrimSpace(f.to) == "" {
			continue
		}
		f.set(f.to)
		filled = append(filled, f.name)
	}
	return filled
}
