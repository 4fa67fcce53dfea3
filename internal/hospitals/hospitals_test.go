package hospitals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/thyrocheck/internal/metrics"
)

type fakeNominatim struct {
	server   *httptest.Server
	geocodes atomic.Int32
	searches atomic.Int32
	status   int
}

func newFakeNominatim(t *testing.T) *fakeNominatim {
	t.Helper()
	f := &fakeNominatim{status: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "thyroid_test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}

		q := r.URL.Query()
		var hits []map[string]string
		switch q.Get("q") {
		case "hospital":
			f.searches.Add(1)
			if q.Get("radius") != "5000" || q.Get("limit") != "10" || q.Get("lat") != "14.5995" || q.Get("lon") != "120.9842" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			hits = []map[string]string{
				{"display_name": "Far Hospital, Quezon City, Philippines", "lat": "14.6760", "lon": "121.0437"},
				{"display_name": "Broken Coordinates", "lat": "north", "lon": "121"},
				{"display_name": "Near Medical Center, Ermita, Manila", "lat": "14.5800", "lon": "120.9800"},
			}
		case "Manila":
			f.geocodes.Add(1)
			if q.Get("limit") != "1" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			hits = []map[string]string{{"display_name": "Manila, Philippines", "lat": "14.5995", "lon": "120.9842"}}
		default:
			f.geocodes.Add(1)
			hits = []map[string]string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hits)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNominatim) client() *Client {
	return NewClient(f.server.URL+"/", "thyroid_test", f.server.Client())
}

func TestDistanceKM(t *testing.T) {
	manila := Point{Lat: 14.5995, Lon: 120.9842}
	quezon := Point{Lat: 14.6760, Lon: 121.0437}

	assert.InDelta(t, 10.646, DistanceKM(manila, quezon), 0.001)
	assert.InDelta(t, DistanceKM(manila, quezon), DistanceKM(quezon, manila), 1e-9)
	assert.Equal(t, 0.0, DistanceKM(manila, manila))
	assert.InDelta(t, 111.195, DistanceKM(Point{}, Point{Lon: 1}), 0.001)
	assert.InDelta(t, 5574.848, DistanceKM(Point{51.5007, -0.1246}, Point{40.6892, -74.0445}), 0.01)
}

func TestFinderNear(t *testing.T) {
	fake := newFakeNominatim(t)
	finder := NewFinder(fake.client())

	result, err := finder.Near(context.Background(), "  Manila ")
	require.NoError(t, err)
	assert.Equal(t, "Manila", result.Location)
	assert.Equal(t, Point{Lat: 14.5995, Lon: 120.9842}, result.Origin)

	require.Len(t, result.Hospitals, 2)
	assert.Equal(t, "Near Medical Center", result.Hospitals[0].Name)
	assert.Equal(t, "Near Medical Center, Ermita, Manila", result.Hospitals[0].Address)
	assert.Equal(t, "Far Hospital", result.Hospitals[1].Name)
	assert.Less(t, result.Hospitals[0].DistanceKM, result.Hospitals[1].DistanceKM)
	assert.InDelta(t, 10.646, result.Hospitals[1].DistanceKM, 0.001)
}

func TestFinderLocationNotFound(t *testing.T) {
	fake := newFakeNominatim(t)
	m := metrics.New(prometheus.NewRegistry())
	finder := NewFinder(fake.client(), WithMetrics(m))

	_, err := finder.Near(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.Equal(t, int32(0), fake.searches.Load())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HospitalUpstream.WithLabelValues("geocode")))
}

func TestFinderUpstreamFailure(t *testing.T) {
	fake := newFakeNominatim(t)
	fake.status = http.StatusServiceUnavailable
	m := metrics.New(prometheus.NewRegistry())
	finder := NewFinder(fake.client(), WithMetrics(m))

	_, err := finder.Near(context.Background(), "Manila")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorContains(t, err, "status 503")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HospitalUpstream.WithLabelValues("geocode")))
}

func TestFinderClosedServer(t *testing.T) {
	fake := newFakeNominatim(t)
	client := fake.client()
	fake.server.Close()

	_, err := NewFinder(client).Near(context.Background(), "Manila")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFinderCachesResults(t *testing.T) {
	fake := newFakeNominatim(t)
	m := metrics.New(prometheus.NewRegistry())
	cache := NewMemoryCache()
	finder := NewFinder(fake.client(), WithCache(cache, time.Minute), WithMetrics(m))
	ctx := context.Background()

	first, err := finder.Near(ctx, "Manila")
	require.NoError(t, err)
	second, err := finder.Near(ctx, "manila")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.geocodes.Load())
	assert.Equal(t, int32(1), fake.searches.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HospitalCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HospitalCache.WithLabelValues("miss")))

	// not-found answers are never cached
	_, err = finder.Near(ctx, "Atlantis")
	require.ErrorIs(t, err, ErrLocationNotFound)
	_, err = finder.Near(ctx, "Atlantis")
	require.ErrorIs(t, err, ErrLocationNotFound)
	assert.Equal(t, int32(3), fake.geocodes.Load())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*Result, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, *Result, time.Duration) error {
	return errors.New("cache down")
}

func TestFinderIgnoresCacheErrors(t *testing.T) {
	fake := newFakeNominatim(t)
	finder := NewFinder(fake.client(), WithCache(failingCache{}, time.Minute))

	result, err := finder.Near(context.Background(), "Manila")
	require.NoError(t, err)
	assert.Len(t, result.Hospitals, 2)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	in := &Result{Location: "Manila", Hospitals: []Hospital{{Name: "A"}}}
	require.NoError(t, cache.Set(ctx, "manila", in, time.Minute))
	in.Hospitals[0].Name = "mutated"

	got, ok, err := cache.Get(ctx, "manila")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", got.Hospitals[0].Name)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, "manila")
	require.NoError(t, err)
	assert.False(t, ok)
}
