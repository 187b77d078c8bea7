// Package grid estimates grid carbon intensity for a location using a chain
// of strategies: externally observed signals, regional real-time APIs, a
// temporal model, and static averages.
package grid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Confidence levels attached to an intensity reading.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Methods describing how a reading was obtained.
const (
	MethodAPI      = "api"
	MethodObserved = "observed"
	MethodTemporal = "temporal"
	MethodStatic   = "static"
)

// observationTTL bounds how long an externally observed signal is trusted
// over a fresh API call.
const observationTTL = 30 * time.Minute

// Intensity is one grid carbon-intensity reading.
type Intensity struct {
	GCO2PerKWh float64 `json:"intensity_gco2_kwh"`
	Source     string  `json:"source"`
	Location   string  `json:"location"`
	Timestamp  string  `json:"timestamp"`
	Confidence string  `json:"confidence"`
	Method     string  `json:"method"`
}

// Comparison relates a live reading to the static regional average.
type Comparison struct {
	StaticAverage     float64 `json:"static_average"`
	DifferenceGCO2KWh float64 `json:"difference_gco2_kwh"`
	DifferencePercent float64 `json:"difference_percent"`
	IsCleaner         bool    `json:"is_cleaner"`
	Message           string  `json:"message"`
}

// staticAverages are the regional fallbacks, in gCO2/kWh.
var staticAverages = map[string]float64{
	"india":      700,
	"us":         400,
	"uk":         280,
	"california": 400,
	"global":     475,
}

// CoordsResolver maps a location name to a representative coordinate, used
// for weather lookups.
type CoordsResolver func(location string) (lat, lon float64)

// Service resolves grid intensity for a location.
type Service struct {
	uk      *UKCarbonIntensityClient
	wt      *WattTimeClient
	em      *ElectricityMapsClient
	weather *WeatherClient
	coords  CoordsResolver
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.RWMutex
	observations map[string]observation
}

type observation struct {
	intensity Intensity
	storedAt  time.Time
}

// NewService creates a grid intensity service over the given provider
// clients.
func NewService(uk *UKCarbonIntensityClient, wt *WattTimeClient, em *ElectricityMapsClient, weather *WeatherClient, coords CoordsResolver, log *zap.Logger) *Service {
	return &Service{
		uk:           uk,
		wt:           wt,
		em:           em,
		weather:      weather,
		coords:       coords,
		logger:       log,
		now:          time.Now,
		observations: make(map[string]observation),
	}
}

// Weather fetches current weather context for a location. Failures are
// logged and reported as an unsuccessful context rather than an error, since
// the weather adjustment is optional.
func (s *Service) Weather(ctx context.Context, location string) *WeatherContext {
	if s.weather == nil {
		return nil
	}
	lat, lon := s.coords(location)
	wc, err := s.weather.Current(ctx, location, lat, lon)
	if err != nil {
		s.logger.Warn("weather lookup failed", zap.String("location", location), zap.Error(err))
		return &WeatherContext{Success: false, Location: location}
	}
	return &wc
}

// RecordObservation stores an externally observed intensity (for example
// from the grid.signals topic) so subsequent lookups for the region can use
// it without an API round trip.
func (s *Service) RecordObservation(region string, gco2PerKWh float64, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	s.observations[strings.ToLower(region)] = observation{
		intensity: Intensity{
			GCO2PerKWh: gco2PerKWh,
			Source:     source,
			Location:   region,
			Timestamp:  now.Format(time.RFC3339),
			Confidence: ConfidenceHigh,
			Method:     MethodObserved,
		},
		storedAt: now,
	}
}

func (s *Service) freshObservation(region string) (Intensity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.observations[strings.ToLower(region)]
	if !ok || s.now().UTC().Sub(obs.storedAt) > observationTTL {
		return Intensity{}, false
	}
	return obs.intensity, true
}

// Intensity resolves the grid intensity for a location at the given hour.
// Failures of upstream providers degrade down the strategy chain; the
// static fallback always succeeds.
func (s *Service) Intensity(ctx context.Context, location string, hour int, isWeekend bool) Intensity {
	loc := strings.ToLower(location)

	if obs, ok := s.freshObservation(regionKey(loc)); ok {
		return obs
	}

	if strings.Contains(loc, "uk") || strings.Contains(loc, "united kingdom") || strings.Contains(loc, "britain") {
		if reading, err := s.uk.Current(ctx); err == nil {
			return reading
		} else {
			s.logger.Warn("uk intensity API unavailable", zap.Error(err))
		}
	}

	if strings.Contains(loc, "california") || strings.Contains(loc, "cal") {
		if s.wt.Enabled() {
			if reading, err := s.wt.Current(ctx); err == nil {
				return reading
			} else {
				s.logger.Warn("watttime unavailable", zap.Error(err))
			}
		}
		if s.em.Enabled() {
			if reading, err := s.em.Current(ctx); err == nil {
				return reading
			} else {
				s.logger.Warn("electricitymaps unavailable", zap.Error(err))
			}
		}
	}

	if strings.Contains(loc, "india") || strings.Contains(loc, "hyderabad") {
		return s.indiaTemporal(hour, isWeekend)
	}

	return s.staticFallback(location)
}

// indiaTemporal models India's diurnal intensity pattern: daytime demand
// raises intensity, nights drop it, weekends run lower.
func (s *Service) indiaTemporal(hour int, isWeekend bool) Intensity {
	base := 700.0
	adjustment := 0.0

	switch {
	case hour >= 9 && hour <= 21:
		adjustment += 50
	case hour < 6 || hour >= 22:
		adjustment -= 100
	default:
		adjustment += 20
	}
	if isWeekend {
		adjustment -= 30
	}

	return Intensity{
		GCO2PerKWh: base + adjustment,
		Source:     "Temporal Model",
		Location:   "India",
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		Confidence: ConfidenceMedium,
		Method:     MethodTemporal,
	}
}

func (s *Service) staticFallback(location string) Intensity {
	value, ok := staticAverages[strings.ToLower(location)]
	if !ok {
		value = staticAverages["global"]
	}
	return Intensity{
		GCO2PerKWh: value,
		Source:     "Static Average",
		Location:   location,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		Confidence: ConfidenceLow,
		Method:     MethodStatic,
	}
}

// CompareLiveVsStatic relates the current reading to the regional average
// and builds the user-facing message.
func (s *Service) CompareLiveVsStatic(ctx context.Context, location string) Comparison {
	current := s.Intensity(ctx, location, s.now().Hour(), isWeekendAt(s.now()))

	static, ok := staticAverages[strings.ToLower(location)]
	if !ok {
		static = staticAverages["global"]
	}

	diff := current.GCO2PerKWh - static
	diffPct := diff / static * 100

	var msg string
	switch {
	case math.Abs(diffPct) < 5:
		msg = fmt.Sprintf("Grid is near average (%.0f gCO2/kWh)", static)
	case diffPct < -10:
		msg = fmt.Sprintf("Grid is %.0f%% cleaner than usual! Great time for high-energy activities.", math.Abs(diffPct))
	case diffPct > 10:
		msg = fmt.Sprintf("Grid is %.0f%% dirtier than usual. Consider delaying energy use if possible.", diffPct)
	default:
		direction := "dirtier"
		if diff < 0 {
			direction = "cleaner"
		}
		msg = fmt.Sprintf("Grid is %.0f%% %s than average.", math.Abs(diffPct), direction)
	}

	return Comparison{
		StaticAverage:     static,
		DifferenceGCO2KWh: math.Round(diff*10) / 10,
		DifferencePercent: math.Round(diffPct*10) / 10,
		IsCleaner:         diff < 0,
		Message:           msg,
	}
}

func regionKey(loc string) string {
	switch {
	case strings.Contains(loc, "uk"), strings.Contains(loc, "united kingdom"), strings.Contains(loc, "britain"):
		return "uk"
	case strings.Contains(loc, "california"), strings.Contains(loc, "cal"):
		return "california"
	case strings.Contains(loc, "india"), strings.Contains(loc, "hyderabad"):
		return "india"
	default:
		return loc
	}
}

func isWeekendAt(at time.Time) bool {
	wd := at.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
