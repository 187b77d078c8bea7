// Package optimization recommends lower-emission times for trips and energy
// use over a 24-hour horizon, blending live conditions with diurnal patterns.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/geo"
	"github.com/CarbonSense/service-estimation/internal/grid"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
	"github.com/CarbonSense/service-estimation/internal/traffic"
)

// VehicleFactors maps vehicle types to kg CO2 per km.
var VehicleFactors = map[string]float64{
	"petrol_car": 0.170,
	"diesel_car": 0.165,
	"hybrid":     0.110,
	"electric":   0.053,
	"motorcycle": 0.113,
	"bus":        0.089,
	"train":      0.041,
	"bicycle":    0.000,
	"walking":    0.000,
}

// FactorFor returns the emission factor for a vehicle type, defaulting to a
// petrol car when the type is unknown.
func FactorFor(vehicleType string) float64 {
	if f, ok := VehicleFactors[vehicleType]; ok {
		return f
	}
	return VehicleFactors["petrol_car"]
}

// Request describes an optimization query.
type Request struct {
	Domain      estimate.Domain
	Location    string
	DistanceKm  float64
	KWh         float64
	VehicleType string
}

// Slot is one forecast hour in the horizon.
type Slot struct {
	Time               string  `json:"time"`
	Datetime           string  `json:"datetime"`
	Hour               int     `json:"hour"`
	Day                string  `json:"day"`
	EstimatedEmissions float64 `json:"estimated_emissions"`
	GridIntensity      float64 `json:"grid_intensity,omitempty"`
	TrafficFactor      float64 `json:"traffic_factor,omitempty"`
	Confidence         string  `json:"confidence"`
	ForecastMethod     string  `json:"forecast_method"`
	SavingsPercent     float64 `json:"savings_percent"`
}

// Savings quantifies the gap between the current hour and the best slot.
type Savings struct {
	AbsoluteKg float64 `json:"absolute_kg"`
	Percent    float64 `json:"percent"`
}

// Methodology documents how the forecast was built.
type Methodology struct {
	Type        string            `json:"type"`
	Description string            `json:"description"`
	DataSources map[string]string `json:"data_sources"`
	Limitations string            `json:"limitations"`
}

// Plan is the full optimization result.
type Plan struct {
	CurrentTime      *Slot       `json:"current_time"`
	BestTimes        []Slot      `json:"best_times"`
	WorstTimes       []Slot      `json:"worst_times"`
	OptimalTime      Slot        `json:"optimal_time"`
	PotentialSavings Savings     `json:"potential_savings"`
	Recommendation   string      `json:"recommendation"`
	Insights         []string    `json:"insights"`
	Methodology      Methodology `json:"methodology"`
}

// GridSource supplies current grid intensity.
type GridSource interface {
	Intensity(ctx context.Context, location string, hour int, isWeekend bool) grid.Intensity
}

// TrafficSource supplies current traffic impact.
type TrafficSource interface {
	Impact(ctx context.Context, q traffic.Query) traffic.Impact
}

// Planner builds 24-hour emission forecasts from live baselines.
type Planner struct {
	grid    GridSource
	traffic TrafficSource
	cities  *geo.CityIndex
	logger  *zap.Logger
	now     func() time.Time
}

// NewPlanner creates a planner over the grid and traffic services.
func NewPlanner(gridSrc GridSource, trafficSrc TrafficSource, cities *geo.CityIndex, log *zap.Logger) *Planner {
	return &Planner{grid: gridSrc, traffic: trafficSrc, cities: cities, logger: log, now: time.Now}
}

// Plan forecasts the next 24 hours and ranks them by estimated emissions.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	switch req.Domain {
	case estimate.DomainEnergy, estimate.DomainTransport:
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported domain %q", req.Domain))
	}

	now := p.now()
	currentHour := now.Hour()

	var (
		gridBaseline    = 400.0
		trafficBaseline = 1.0
		liveBaseline    bool
	)

	switch req.Domain {
	case estimate.DomainEnergy:
		current := p.grid.Intensity(ctx, req.Location, currentHour, isWeekend(now))
		gridBaseline = current.GCO2PerKWh
		liveBaseline = current.Method != grid.MethodStatic
	case estimate.DomainTransport:
		distance := req.DistanceKm
		if distance <= 0 {
			distance = 10.0
		}
		lat, lon := p.cities.DefaultCoords(req.Location)
		// Offset one degree of latitude per 111 km to synthesize a route of
		// the requested length for the traffic probe.
		start := traffic.Point{Lat: lat, Lon: lon}
		end := traffic.Point{Lat: lat + distance/111.0, Lon: lon}
		current := p.traffic.Impact(ctx, traffic.Query{
			DistanceKm: distance,
			Location:   req.Location,
			Start:      &start,
			End:        &end,
			At:         now,
		})
		trafficBaseline = current.EmissionMultiplier
		liveBaseline = current.Method == "real_time_api"
	}

	slots := make([]Slot, 0, 24)
	for offset := 0; offset < 24; offset++ {
		futureTime := now.Add(time.Duration(offset) * time.Hour)
		futureHour := futureTime.Hour()
		weekend := isWeekend(futureTime)

		slot := Slot{
			Time:           futureTime.Format("03:04 PM"),
			Datetime:       futureTime.Format(time.RFC3339),
			Hour:           futureHour,
			Day:            futureTime.Format("Mon"),
			ForecastMethod: "real_baseline_plus_patterns",
		}

		switch req.Domain {
		case estimate.DomainEnergy:
			intensity := forecastGridIntensity(gridBaseline, futureHour, weekend)
			kwh := req.KWh
			if kwh <= 0 {
				kwh = 1.0
			}
			slot.GridIntensity = round1(intensity)
			slot.EstimatedEmissions = round3(kwh * intensity / 1000)
			slot.Confidence = horizonConfidence(liveBaseline, offset, 6, 12)
		case estimate.DomainTransport:
			multiplier := forecastTrafficMultiplier(trafficBaseline, currentHour, futureHour, weekend)
			distance := req.DistanceKm
			if distance <= 0 {
				distance = 10.0
			}
			slot.TrafficFactor = round2(multiplier)
			slot.EstimatedEmissions = round3(distance * FactorFor(req.VehicleType) * multiplier)
			slot.Confidence = horizonConfidence(liveBaseline, offset, 4, 8)
		}

		slots = append(slots, slot)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].EstimatedEmissions < slots[j].EstimatedEmissions
	})

	worst := slots[len(slots)-1].EstimatedEmissions
	for i := range slots {
		if worst > 0 {
			slots[i].SavingsPercent = round1((worst - slots[i].EstimatedEmissions) / worst * 100)
		}
	}

	var currentSlot *Slot
	for i := range slots {
		if slots[i].Hour == currentHour {
			currentSlot = &slots[i]
			break
		}
	}

	best := slots[:5]
	worstTimes := slots[len(slots)-3:]

	var savings Savings
	if currentSlot != nil {
		savings = Savings{
			AbsoluteKg: round3(currentSlot.EstimatedEmissions - best[0].EstimatedEmissions),
			Percent:    round1(currentSlot.SavingsPercent),
		}
	}

	baselineSource := "Historical average"
	if liveBaseline {
		baselineSource = "Real-time API data"
	}

	return &Plan{
		CurrentTime:      currentSlot,
		BestTimes:        best,
		WorstTimes:       worstTimes,
		OptimalTime:      best[0],
		PotentialSavings: savings,
		Recommendation:   recommendation(best[0], currentSlot, req.Domain, savings.Percent),
		Insights:         insights(slots, req.Domain),
		Methodology: Methodology{
			Type:        "hybrid_forecast",
			Description: "Uses current real-time data as baseline, applies validated time-based patterns",
			DataSources: map[string]string{
				"current_baseline": baselineSource,
				"patterns":         "Empirical time-of-day patterns from historical data",
				"confidence_decay": "High (0-6h), Medium (6-12h), Low (12-24h)",
			},
			Limitations: "Does not account for unpredictable events (weather changes, accidents, grid outages)",
		},
	}, nil
}

// forecastGridIntensity scales a live baseline by diurnal grid patterns:
// solar depresses midday intensity, evening demand raises it, wind and low
// demand pull the night down.
func forecastGridIntensity(baseline float64, futureHour int, isWeekend bool) float64 {
	factor := 1.0
	switch {
	case futureHour >= 10 && futureHour <= 16:
		factor -= 0.25
	case futureHour >= 18 && futureHour <= 21:
		factor += 0.35
	case futureHour >= 22 || futureHour <= 5:
		factor -= 0.20
	case futureHour >= 6 && futureHour <= 9:
		factor += 0.15
	}
	if isWeekend {
		factor -= 0.10
	}
	return math.Max(50, math.Min(900, baseline*factor))
}

// forecastTrafficMultiplier blends the live multiplier with the pattern for
// the target hour; the blend trusts the live reading less as the horizon
// grows.
func forecastTrafficMultiplier(baseline float64, currentHour, futureHour int, isWeekend bool) float64 {
	var target float64
	if isWeekend {
		switch {
		case futureHour >= 10 && futureHour <= 16:
			target = 1.3
		case futureHour >= 18 && futureHour <= 20:
			target = 1.2
		default:
			target = 1.0
		}
	} else {
		switch {
		case futureHour >= 7 && futureHour <= 9:
			target = 1.8
		case futureHour >= 17 && futureHour <= 19:
			target = 1.9
		case futureHour >= 12 && futureHour <= 14:
			target = 1.3
		case futureHour >= 9 && futureHour <= 17:
			target = 1.2
		case futureHour >= 22 || futureHour <= 5:
			target = 1.0
		default:
			target = 1.1
		}
	}

	hoursAhead := ((futureHour-currentHour)%24 + 24) % 24
	var forecast float64
	switch {
	case hoursAhead <= 2:
		forecast = 0.8*baseline + 0.2*target
	case hoursAhead <= 6:
		forecast = 0.5*baseline + 0.5*target
	default:
		forecast = 0.2*baseline + 0.8*target
	}
	return math.Max(1.0, forecast)
}

func horizonConfidence(live bool, offset, highCutoff, mediumCutoff int) string {
	switch {
	case live && offset < highCutoff:
		return "high"
	case offset < mediumCutoff:
		return "medium"
	default:
		return "low"
	}
}

func recommendation(best Slot, current *Slot, d estimate.Domain, savingsPercent float64) string {
	if current == nil {
		return fmt.Sprintf("Optimal time: %s (%s)", best.Time, best.Day)
	}

	if best.Hour == current.Hour {
		if d == estimate.DomainEnergy {
			return "Great timing! This is one of the best times to use energy. Grid is relatively clean right now."
		}
		return "Great timing! Traffic conditions are favorable right now for your trip."
	}

	switch {
	case savingsPercent < 5:
		return fmt.Sprintf("Current timing is good. Only %.0f%% potential improvement.", savingsPercent)
	case savingsPercent < 15:
		return fmt.Sprintf("Consider %s (%s) for %.0f%% lower emissions.", best.Time, best.Day, savingsPercent)
	default:
		if d == estimate.DomainEnergy {
			return fmt.Sprintf("Significant savings available! Charging at %s (%s) could reduce emissions by %.0f%%. Grid will be %s.",
				best.Time, best.Day, savingsPercent, timeDescription(best.Hour, d))
		}
		return fmt.Sprintf("Major savings possible! Traveling at %s (%s) could reduce emissions by %.0f%%. %s.",
			best.Time, best.Day, savingsPercent, timeDescription(best.Hour, d))
	}
}

func timeDescription(hour int, d estimate.Domain) string {
	if d == estimate.DomainEnergy {
		switch {
		case hour >= 10 && hour <= 16:
			return "cleaner (solar generation peak)"
		case hour >= 22 || hour <= 5:
			return "cleaner (low demand, wind power)"
		case hour >= 18 && hour <= 21:
			return "at evening peak (avoid if possible)"
		default:
			return "at moderate intensity"
		}
	}
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return "Rush hour conditions"
	case hour >= 22 || hour <= 5:
		return "Clear roads, minimal traffic"
	case hour >= 12 && hour <= 14:
		return "Moderate lunch-time traffic"
	default:
		return "Light to moderate traffic"
	}
}

// insights summarizes the sorted slot list. Slots must already be sorted
// best-first.
func insights(sorted []Slot, d estimate.Domain) []string {
	out := []string{}
	if len(sorted) == 0 {
		return out
	}
	bestEmissions := sorted[0].EstimatedEmissions

	if d == estimate.DomainEnergy {
		var windowStart, windowEnd string
		inWindow := false
		for _, s := range sorted {
			if s.EstimatedEmissions <= bestEmissions*1.1 {
				if !inWindow {
					windowStart = s.Time
					inWindow = true
				}
				windowEnd = s.Time
			} else {
				inWindow = false
			}
		}
		if windowStart != "" {
			out = append(out, fmt.Sprintf("Best window: %s - %s", windowStart, windowEnd))
		}

		weekendAvg, weekendN := 0.0, 0
		weekdayAvg, weekdayN := 0.0, 0
		for _, s := range sorted {
			if s.Day == "Sat" || s.Day == "Sun" {
				weekendAvg += s.EstimatedEmissions
				weekendN++
			} else {
				weekdayAvg += s.EstimatedEmissions
				weekdayN++
			}
		}
		if weekendN > 0 && weekdayN > 0 {
			weekendAvg /= float64(weekendN)
			weekdayAvg /= float64(weekdayN)
			if weekendAvg < weekdayAvg*0.9 {
				diff := (weekdayAvg - weekendAvg) / weekdayAvg * 100
				out = append(out, fmt.Sprintf("Weekend charging is %.0f%% cleaner on average", diff))
			}
		}

		nightAvg, nightN := 0.0, 0
		dayAvg, dayN := 0.0, 0
		for _, s := range sorted {
			if s.Hour >= 22 || s.Hour <= 5 {
				nightAvg += s.EstimatedEmissions
				nightN++
			}
			if s.Hour >= 9 && s.Hour <= 17 {
				dayAvg += s.EstimatedEmissions
				dayN++
			}
		}
		if nightN > 0 && dayN > 0 {
			nightAvg /= float64(nightN)
			dayAvg /= float64(dayN)
			if nightAvg < dayAvg*0.85 {
				out = append(out, "Night charging (10pm-6am) reduces emissions significantly")
			} else if dayAvg < nightAvg*0.85 {
				out = append(out, "Daytime charging (9am-5pm) is cleaner due to solar generation")
			}
		}
		return out
	}

	rushAvg, rushN := 0.0, 0
	offPeakAvg, offPeakN := 0.0, 0
	middayAvg, middayN := 0.0, 0
	for _, s := range sorted {
		switch s.Hour {
		case 7, 8, 17, 18, 19:
			rushAvg += s.EstimatedEmissions
			rushN++
		case 22, 23, 0, 1, 2, 3, 4, 5:
			offPeakAvg += s.EstimatedEmissions
			offPeakN++
		}
		if s.Hour >= 10 && s.Hour <= 15 {
			middayAvg += s.EstimatedEmissions
			middayN++
		}
	}
	if rushN > 0 && offPeakN > 0 {
		rushAvg /= float64(rushN)
		offPeakAvg /= float64(offPeakN)
		if diff := (rushAvg - offPeakAvg) / rushAvg * 100; diff > 30 {
			out = append(out, fmt.Sprintf("Rush hour adds %.0f%% more emissions due to traffic", diff))
		}
	}
	out = append(out, "Optimal travel window: 10pm - 6am (minimal traffic)")
	if middayN > 0 {
		middayAvg /= float64(middayN)
		if middayAvg <= bestEmissions*1.15 {
			out = append(out, "Midday (10am-3pm) is also a good option")
		}
	}
	return out
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
