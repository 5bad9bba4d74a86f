package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

const davisResult = `{
  "status": "OK",
  "results": [{
    "formatted_address": "1 Elm St, Davis, CA 95616, USA",
    "address_components": [
      {"long_name": "1", "short_name": "1", "types": ["street_number"]},
      {"long_name": "Elm Street", "short_name": "Elm St", "types": ["route"]},
      {"long_name": "Davis", "short_name": "Davis", "types": ["locality", "political"]},
      {"long_name": "California", "short_name": "CA", "types": ["administrative_area_level_1", "political"]},
      {"long_name": "95616", "short_name": "95616", "types": ["postal_code"]}
    ],
    "geometry": {"location": {"lat": 38.5449, "lng": -121.7405}}
  }]
}`

func newGoogle(t *testing.T, body string) (*GoogleGeocoder, *http.Request) {
	t.Helper()

	var seen http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		seen = *r
		rw.Header().Set("Content-Type", "application/json")
		fmt.Fprint(rw, body)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGoogleGeocoder("test-key", maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return g, &seen
}

func TestGoogleReverse(t *testing.T) {
	g, seen := newGoogle(t, davisResult)

	addr, err := g.Reverse(context.Background(), Coordinate{Lat: 38.5449, Lng: -121.7405})
	require.NoError(t, err)
	assert.Equal(t, Address{Street: "1 Elm Street", City: "Davis", State: "CA", Zip: "95616"}, addr)
	assert.Equal(t, "38.5449,-121.7405", seen.URL.Query().Get("latlng"))
	assert.Equal(t, "test-key", seen.URL.Query().Get("key"))
}

func TestGoogleForward(t *testing.T) {
	g, seen := newGoogle(t, davisResult)

	c, err := g.Forward(context.Background(), "1 Elm St, Davis, CA 95616")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Lat: 38.5449, Lng: -121.7405}, c)
	assert.Equal(t, "1 Elm St, Davis, CA 95616", seen.URL.Query().Get("address"))
}

func TestGoogleNoResults(t *testing.T) {
	g, _ := newGoogle(t, `{"status": "OK", "results": []}`)

	_, err := g.Reverse(context.Background(), Coordinate{})
	assert.ErrorIs(t, err, ErrNoResults)
	_, err = g.Forward(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestNewGoogleGeocoderRequiresKey(t *testing.T) {
	_, err := NewGoogleGeocoder("")
	assert.Error(t, err)
}

func TestAddressOfFallsBackToPostalTown(t *testing.T) {
	addr := addressOf([]maps.AddressComponent{
		{LongName: "Cambridge", Types: []string{"postal_town"}},
		{LongName: "CB2 1TN", Types: []string{"postal_code"}},
	})
	assert.Equal(t, "Cambridge", addr.City)
	assert.Equal(t, "", addr.Street)
}

func TestAddressQuery(t *testing.T) {
	assert.Equal(t, "1 Elm St, Davis, CA 95616", Address{"1 Elm St", "Davis", "CA", "95616"}.Query())
	assert.Equal(t, "Davis, CA", Address{City: "Davis", State: "CA"}.Query())
}

type form struct{ Address }

func (f *form) AddressFields() Address { return f.Address }
func (f *form) SetAddress(s string)    { f.Street = s }
func (f *form) SetCity(s string)       { f.City = s }
func (f *form) SetState(s string)      { f.State = s }
func (f *form) SetZip(s string)        { f.Zip = s }

func TestAutofillOnlyEmptyFields(t *testing.T) {
	f := &form{Address{Street: "12 Typed Rd", Zip: " "}}

	filled := Autofill(f, Address{Street: "1 Elm St", City: "Davis", State: "CA", Zip: "95616"})
	assert.Equal(t, []string{"city", "state", "zip"}, filled)
	assert.Equal(t, Address{Street: "12 Typed Rd", City: "Davis", State: "CA", Zip: "95616"}, f.Address)

	filled = Autofill(f, Address{Street: "9 Other", City: "Sacramento"})
	assert.Empty(t, filled)
	assert.Equal(t, "Davis", f.City)
}

func TestAutofillSkipsBlankResults(t *testing.T) {
	f := &form{}
	assert.Equal(t, []string{"city"}, Autofill(f, Address{City: "Davis"}))
	assert.Equal(t, "", f.Street)
}

func TestTrailThresholds(t *testing.T) {
	tr := NewTrail(50, 10*time.Second)
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	base := Coordinate{Lat: 38.5449, Lng: -121.7405}

	assert.True(t, tr.Add(Fix{base, t0}))
	assert.False(t, tr.Add(Fix{Coordinate{base.Lat + 0.005, base.Lng}, t0.Add(5 * time.Second)}), "too soon")
	assert.False(t, tr.Add(Fix{Coordinate{base.Lat + 0.0001, base.Lng}, t0.Add(20 * time.Second)}), "too close")
	assert.True(t, tr.Add(Fix{Coordinate{base.Lat + 0.001, base.Lng}, t0.Add(30 * time.Second)}))

	assert.Len(t, tr.Points(), 2)
	assert.InDelta(t, 0.111, tr.Distance(), 0.005)
}

func TestWatchStopsOnCancel(t *testing.T) {
	tr := NewTrail(0, 0)
	fixes := make(chan Fix)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tr.Watch(ctx, fixes) }()

	fixes <- Fix{Coordinate{1, 1}, time.Unix(0, 0)}
	fixes <- Fix{Coordinate{1.01, 1}, time.Unix(60, 0)}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.Len(t, tr.Points(), 2)
}

func TestWatchReturnsWhenStreamCloses(t *testing.T) {
	tr := NewTrail(0, 0)
	fixes := make(chan Fix, 1)
	fixes <- Fix{Coordinate{1, 1}, time.Unix(0, 0)}
	close(fixes)

	require.NoError(t, tr.Watch(context.Background(), fixes))
	assert.Len(t, tr.Points(), 1)
}
