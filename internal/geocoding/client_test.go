package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_ParsesResultsAndSendsUserAgent(t *testing.T) {
	var gotUA, gotQuery, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"lat":"51.5074456","lon":"-0.1277653","display_name":"London, Greater London, England, United Kingdom"},
			{"lat":"42.9836747","lon":"-81.2496068","display_name":"London, Ontario, Canada"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "CarbonSense/2.0 (test)")
	places, err := c.Search(context.Background(), "london")
	require.NoError(t, err)

	assert.Equal(t, "CarbonSense/2.0 (test)", gotUA)
	assert.Equal(t, "london", gotQuery)
	assert.Equal(t, "5", gotLimit)

	require.Len(t, places, 2)
	assert.InDelta(t, 51.5074456, places[0].Lat, 1e-6)
	assert.InDelta(t, -0.1277653, places[0].Lon, 1e-6)
	assert.Equal(t, "London, Greater London, England, United Kingdom", places[0].DisplayName)
}

func TestSearch_SkipsUnparseableCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"lat":"not-a-number","lon":"2.35","display_name":"broken"},
			{"lat":"48.8566","lon":"2.3522","display_name":"Paris, France"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test")
	places, err := c.Search(context.Background(), "paris")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Paris, France", places[0].DisplayName)
}

func TestSearch_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test")
	_, err := c.Search(context.Background(), "london")
	assert.Error(t, err)
}

func TestReverse_ReturnsDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "51.5074", r.URL.Query().Get("lat"))
		_, _ = w.Write([]byte(`{"display_name":"Westminster, London, United Kingdom"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test")
	place, err := c.Reverse(context.Background(), 51.5074, -0.1278)
	require.NoError(t, err)
	assert.Equal(t, "Westminster, London, United Kingdom", place.DisplayName)
	assert.InDelta(t, 51.5074, place.Lat, 1e-9)
}

func TestReverse_TransportErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, "test")
	_, err := c.Reverse(context.Background(), 0, 0)
	assert.Error(t, err)
}
