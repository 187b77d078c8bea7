package geo

import (
	"strings"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	indexTolerance = 0.01
	minChildren    = 2
	maxChildren    = 8
	dimensions     = 2
)

// City is a known reference location with the region used for grid and
// traffic lookups.
type City struct {
	Name   string
	Region string
	Lat    float64
	Lon    float64
}

type cityItem struct {
	city City
	rect *rtreego.Rect
}

func (ci *cityItem) Bounds() *rtreego.Rect {
	return ci.rect
}

// CityIndex is a thread-safe R-Tree index over known cities. It resolves
// arbitrary coordinates to the nearest named city/region.
type CityIndex struct {
	mu     sync.RWMutex
	tree   *rtreego.Rtree
	byName map[string]City
}

// knownCities mirrors the reference table the context services key off.
var knownCities = []City{
	{Name: "London", Region: "UK", Lat: 51.5074, Lon: -0.1278},
	{Name: "San Francisco", Region: "California", Lat: 37.7749, Lon: -122.4194},
	{Name: "Los Angeles", Region: "California", Lat: 34.0522, Lon: -118.2437},
	{Name: "Delhi", Region: "India", Lat: 28.6139, Lon: 77.2090},
	{Name: "Hyderabad", Region: "India", Lat: 17.3850, Lon: 78.4867},
	{Name: "Mumbai", Region: "India", Lat: 19.0760, Lon: 72.8777},
	{Name: "Bangalore", Region: "India", Lat: 12.9716, Lon: 77.5946},
}

// NewCityIndex builds an index over the built-in reference cities.
func NewCityIndex() *CityIndex {
	idx := &CityIndex{
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren),
		byName: make(map[string]City, len(knownCities)),
	}
	for _, c := range knownCities {
		idx.insert(c)
	}
	return idx
}

// Add inserts an additional reference city into the index.
func (idx *CityIndex) Add(c City) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.insert(c)
}

func (idx *CityIndex) insert(c City) {
	rect, err := rtreego.NewRect(
		rtreego.Point{c.Lat - indexTolerance, c.Lon - indexTolerance},
		[]float64{2 * indexTolerance, 2 * indexTolerance},
	)
	if err != nil {
		return
	}
	idx.tree.Insert(&cityItem{city: c, rect: rect})
	idx.byName[strings.ToLower(c.Name)] = c
}

// Nearest returns the known city closest to the given coordinate and the
// great-circle distance to it in kilometers.
func (idx *CityIndex) Nearest(lat, lon float64) (City, float64) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	item := idx.tree.NearestNeighbor(rtreego.Point{lat, lon})
	ci, ok := item.(*cityItem)
	if !ok {
		return City{}, 0
	}
	return ci.city, Distance(lat, lon, ci.city.Lat, ci.city.Lon)
}

// RegionFor resolves a coordinate to the grid/traffic region of the nearest
// known city.
func (idx *CityIndex) RegionFor(lat, lon float64) string {
	city, _ := idx.Nearest(lat, lon)
	return city.Region
}

// Lookup returns the reference coordinates for a named location, matching
// case-insensitively. The second return is false for unknown names.
func (idx *CityIndex) Lookup(name string) (City, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	c, ok := idx.byName[strings.ToLower(name)]
	return c, ok
}

// DefaultCoords returns reference coordinates for a location string, falling
// back to London when the name is unknown. Region names resolve to their
// principal city.
func (idx *CityIndex) DefaultCoords(location string) (float64, float64) {
	switch strings.ToLower(location) {
	case "uk", "united kingdom", "britain":
		location = "London"
	case "california":
		location = "San Francisco"
	case "india":
		location = "Delhi"
	}
	if c, ok := idx.Lookup(location); ok {
		return c.Lat, c.Lon
	}
	return 51.5074, -0.1278
}
