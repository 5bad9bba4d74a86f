package geo

import (
	"context"
	"sync"
	"time"

	"github.com/umahmood/haversine"
)

// Fix is one position reported by the device.
type Fix struct {
	Coordinate
	Time time.Time
}

// Trail is the route driven while a watch is active. A fix is recorded only
// when it is at least the minimum distance and the minimum interval away
// from the last recorded one.
type Trail struct {
	minMeters   float64
	minInterval time.Duration

	mu     sync.Mutex
	points []Fix
	km     float64
}

func NewTrail(minMeters float64, minInterval time.Duration) *Trail {
	return &Trail{
		minMeters:   minMeters,
		minInterval: minInterval,
	}
}

// Add records f and reports whether it was kept.
func (t *Trail) Add(f Fix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.points) == 0 {
		t.points = append(t.points, f)
		return true
	}

	last := t.points[len(t.points)-1]
	if f.Time.Sub(last.Time) < t.minInterval {
		return false
	}
	km := DistanceKm(last.Coordinate, f.Coordinate)
	if km*1000 < t.minMeters {
		return false
	}

	t.points = append(t.points, f)
	t.km += km
	return true
}

// Points returns a copy of the recorded fixes in order.
func (t *Trail) Points() []Fix {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Fix(nil), t.points...)
}

// Distance returns the length of the trail in kilometres.
func (t *Trail) Distance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.km
}

// Watch feeds fixes into the trail until ctx is done or the stream is
// closed. It returns ctx.Err() in the first case and nil in the second.
func (t *Trail) Watch(ctx context.Context, fixes <-chan Fix) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-fixes:
			if !ok {
				return nil
			}
			t.Add(f)
		}
	}
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lng},
		haversine.Coord{Lat: b.Lat, Lon: b.Lng},
	)
	return km
}
