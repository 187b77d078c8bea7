package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	estimateDomain "github.com/CarbonSense/service-estimation/internal/domain/estimate"
	"github.com/CarbonSense/service-estimation/internal/grid"
	"github.com/CarbonSense/service-estimation/internal/inference"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
	"github.com/CarbonSense/service-estimation/internal/traffic"
)

// staticTrainingIntensity is the grid intensity (gCO2/kWh) the energy models
// were trained against; the context-aware adjustment rescales from it.
const staticTrainingIntensity = 400.0

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Domain      string   `json:"domain" binding:"required"`
	DistanceKm  *float64 `json:"distance_km"`
	KWh         *float64 `json:"kwh"`
	Hour        *int     `json:"hour"`
	DayOfWeek   *int     `json:"day_of_week"`
	IsWeekend   *int     `json:"is_weekend"`
	Location    string   `json:"location"`
	VehicleType string   `json:"vehicle_type"`
	StartLat    *float64 `json:"start_lat"`
	StartLon    *float64 `json:"start_lon"`
	EndLat      *float64 `json:"end_lat"`
	EndLon      *float64 `json:"end_lon"`
}

// Prediction is one model's entry in the predictions map.
type Prediction struct {
	Mean        float64      `json:"mean"`
	Std         *float64     `json:"std,omitempty"`
	CILower     *float64     `json:"ci_lower,omitempty"`
	CIUpper     *float64     `json:"ci_upper,omitempty"`
	Description string       `json:"description,omitempty"`
	Adjustments *Adjustments `json:"adjustments,omitempty"`
}

// Adjustments documents the factors behind the context-aware prediction.
type Adjustments struct {
	GridFactor    float64 `json:"grid_factor"`
	WeatherFactor float64 `json:"weather_factor"`
	TotalFactor   float64 `json:"total_factor"`
}

// FeatureContribution is one feature's attribution in the explainability
// block.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	ShapValue    float64 `json:"shap_value"`
	Contribution float64 `json:"contribution"`
}

// ModelExplanation is the explainability entry for one tree model.
type ModelExplanation struct {
	BaseValue         float64               `json:"base_value"`
	Prediction        float64               `json:"prediction"`
	FeatureImportance []FeatureContribution `json:"feature_importance"`
	Explanation       string                `json:"explanation"`
}

// GridContext is the grid block of a prediction response.
type GridContext struct {
	grid.Intensity
	Comparison *grid.Comparison `json:"comparison,omitempty"`
}

// PredictResponse is the body returned by POST /predict.
type PredictResponse struct {
	Status         string                      `json:"status"`
	Domain         string                      `json:"domain"`
	Predictions    map[string]Prediction       `json:"predictions"`
	ModelsUsed     []string                    `json:"models_used"`
	Explainability map[string]ModelExplanation `json:"explainability"`
	GridContext    *GridContext                `json:"grid_context,omitempty"`
	WeatherContext *grid.WeatherContext        `json:"weather_context,omitempty"`
	TrafficContext *traffic.Impact             `json:"traffic_context,omitempty"`
	ContextScore   *float64                    `json:"context_score,omitempty"`
}

// InferenceClient is the outbound contract to the model server.
type InferenceClient interface {
	Predict(ctx context.Context, req inference.Request) (*inference.Result, error)
}

// GridService resolves grid intensity, comparisons, and weather context.
type GridService interface {
	Intensity(ctx context.Context, location string, hour int, isWeekend bool) grid.Intensity
	CompareLiveVsStatic(ctx context.Context, location string) grid.Comparison
	Weather(ctx context.Context, location string) *grid.WeatherContext
}

// TrafficService resolves traffic impact for a trip.
type TrafficService interface {
	Impact(ctx context.Context, q traffic.Query) traffic.Impact
}

// EstimationService orchestrates the /predict use case.
type EstimationService struct {
	inference InferenceClient
	grid      GridService
	traffic   TrafficService
	repo      estimateDomain.Repository
	producer  EventPublisher
	logger    *zap.Logger
}

// NewEstimationService creates a new EstimationService.
func NewEstimationService(
	inferenceClient InferenceClient,
	gridSvc GridService,
	trafficSvc TrafficService,
	repo estimateDomain.Repository,
	producer EventPublisher,
	logger *zap.Logger,
) *EstimationService {
	return &EstimationService{
		inference: inferenceClient,
		grid:      gridSvc,
		traffic:   trafficSvc,
		repo:      repo,
		producer:  producer,
		logger:    logger,
	}
}

// EstimateComputedEvent is published after a prediction is served.
type EstimateComputedEvent struct {
	EstimateID   string    `json:"estimate_id"`
	Domain       string    `json:"domain"`
	Location     string    `json:"location"`
	BlendedMean  float64   `json:"blended_mean_kg"`
	ModelCount   int       `json:"model_count"`
	ContextScore *float64  `json:"context_score,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Predict runs all models for the request, enriches the result with live
// context, and records the served estimate.
func (s *EstimationService) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	dom, err := estimateDomain.ParseDomain(req.Domain)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	if dom == estimateDomain.DomainTransport && req.DistanceKm == nil {
		return nil, domain.NewValidationError("distance_km required")
	}
	if dom == estimateDomain.DomainEnergy && req.KWh == nil {
		return nil, domain.NewValidationError("kwh required")
	}

	hour := valueOr(req.Hour, 12)
	dayOfWeek := valueOr(req.DayOfWeek, 3)
	isWeekend := valueOr(req.IsWeekend, 0)
	location := req.Location
	if location == "" {
		location = "UK"
	}
	if hour < 0 || hour > 23 {
		return nil, domain.NewValidationError(fmt.Sprintf("hour out of range: %d", hour))
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, domain.NewValidationError(fmt.Sprintf("day_of_week out of range: %d", dayOfWeek))
	}

	var (
		gridCtx    *GridContext
		weatherCtx *grid.WeatherContext
		trafficCtx *traffic.Impact
	)

	switch dom {
	case estimateDomain.DomainEnergy:
		reading := s.grid.Intensity(ctx, location, hour, isWeekend == 1)
		comparison := s.grid.CompareLiveVsStatic(ctx, location)
		gridCtx = &GridContext{Intensity: reading, Comparison: &comparison}
		weatherCtx = s.grid.Weather(ctx, location)
	case estimateDomain.DomainTransport:
		if req.StartLat != nil && req.StartLon != nil && req.EndLat != nil && req.EndLon != nil {
			start := traffic.Point{Lat: *req.StartLat, Lon: *req.StartLon}
			end := traffic.Point{Lat: *req.EndLat, Lon: *req.EndLon}
			impact := s.traffic.Impact(ctx, traffic.Query{
				DistanceKm: *req.DistanceKm,
				Location:   location,
				Start:      &start,
				End:        &end,
			})
			trafficCtx = &impact
		}
	}

	features := buildFeatures(dom, req, hour, dayOfWeek, isWeekend)
	result, err := s.inference.Predict(ctx, inference.Request{
		Domain:   dom.String(),
		Features: features,
	})
	if err != nil {
		s.logger.Error("inference call failed", zap.String("domain", dom.String()), zap.Error(err))
		return nil, domain.NewUnavailableError("prediction service unavailable")
	}

	predictions := make(map[string]Prediction, len(result.Predictions)+1)
	for name, mr := range result.Predictions {
		p := Prediction{Mean: mr.Mean, Std: mr.Std}
		if mr.Std != nil {
			lower := mr.Mean - 1.96**mr.Std
			upper := mr.Mean + 1.96**mr.Std
			p.CILower = &lower
			p.CIUpper = &upper
		}
		predictions[name] = p
	}

	if dom == estimateDomain.DomainEnergy && gridCtx != nil {
		if bayesian, ok := predictions["bayesian"]; ok {
			predictions["context_aware"] = contextAwarePrediction(bayesian, gridCtx.GCO2PerKWh, weatherCtx)
		}
	}

	explainability := make(map[string]ModelExplanation, len(result.Explanations))
	for name, ex := range result.Explanations {
		explainability[name] = buildExplanation(ex, dom)
	}

	modelsUsed := make([]string, 0, len(predictions))
	for name := range predictions {
		modelsUsed = append(modelsUsed, name)
	}
	sort.Strings(modelsUsed)

	score := contextScore(gridCtx, weatherCtx, trafficCtx)

	s.recordEstimate(ctx, dom, req, hour, dayOfWeek, isWeekend, location, result, score)

	return &PredictResponse{
		Status:         "success",
		Domain:         dom.String(),
		Predictions:    predictions,
		ModelsUsed:     modelsUsed,
		Explainability: explainability,
		GridContext:    gridCtx,
		WeatherContext: weatherCtx,
		TrafficContext: trafficCtx,
		ContextScore:   score,
	}, nil
}

// recordEstimate persists and announces the served estimate. History is
// best-effort: failures are logged, the prediction is still served.
func (s *EstimationService) recordEstimate(
	ctx context.Context,
	dom estimateDomain.Domain,
	req PredictRequest,
	hour, dayOfWeek, isWeekend int,
	location string,
	result *inference.Result,
	score *float64,
) {
	sum := 0.0
	for _, mr := range result.Predictions {
		sum += mr.Mean
	}
	blended := sum / float64(len(result.Predictions))

	inputs := estimateDomain.Inputs{
		Hour:        hour,
		DayOfWeek:   dayOfWeek,
		IsWeekend:   isWeekend,
		Location:    location,
		VehicleType: req.VehicleType,
		DistanceKm:  req.DistanceKm,
		KWh:         req.KWh,
		StartLat:    req.StartLat,
		StartLon:    req.StartLon,
		EndLat:      req.EndLat,
		EndLon:      req.EndLon,
	}

	est, err := estimateDomain.NewEstimate(dom, inputs, blended, len(result.Predictions), score)
	if err != nil {
		s.logger.Error("failed to build estimate record", zap.Error(err))
		return
	}
	if err := s.repo.Save(ctx, est); err != nil {
		s.logger.Error("failed to save estimate record", zap.String("estimate_id", est.ID().String()), zap.Error(err))
		return
	}

	evt := EstimateComputedEvent{
		EstimateID:   est.ID().String(),
		Domain:       dom.String(),
		Location:     location,
		BlendedMean:  blended,
		ModelCount:   est.ModelCount(),
		ContextScore: score,
		OccurredAt:   time.Now().UTC(),
	}
	s.publishEvent(ctx, TopicEstimationEvents, EventEstimateComputed, evt)
}

func (s *EstimationService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	publishEvent(ctx, s.producer, s.logger, topic, eventType, data)
}

func buildFeatures(dom estimateDomain.Domain, req PredictRequest, hour, dayOfWeek, isWeekend int) []inference.Feature {
	var first inference.Feature
	if dom == estimateDomain.DomainTransport {
		first = inference.Feature{Name: "distance_km", Value: *req.DistanceKm}
	} else {
		first = inference.Feature{Name: "kWh", Value: *req.KWh}
	}
	return []inference.Feature{
		first,
		{Name: "hour", Value: float64(hour)},
		{Name: "day_of_week", Value: float64(dayOfWeek)},
		{Name: "is_weekend", Value: float64(isWeekend)},
	}
}

// contextAwarePrediction rescales the bayesian estimate from the static
// training intensity to the live grid, then folds in the weather impact.
func contextAwarePrediction(bayesian Prediction, liveIntensity float64, weather *grid.WeatherContext) Prediction {
	gridFactor := liveIntensity / staticTrainingIntensity

	weatherFactor := 1.0
	if weather != nil && weather.Success {
		weatherFactor = 1.0 + weather.Impact.Score/100.0
	}

	total := gridFactor * weatherFactor

	p := Prediction{
		Mean:        bayesian.Mean * total,
		Description: "Adjusted using real-time grid intensity and weather conditions",
		Adjustments: &Adjustments{
			GridFactor:    round3(gridFactor),
			WeatherFactor: round3(weatherFactor),
			TotalFactor:   round3(total),
		},
	}
	if bayesian.CILower != nil && bayesian.CIUpper != nil {
		lower := *bayesian.CILower * total
		upper := *bayesian.CIUpper * total
		p.CILower = &lower
		p.CIUpper = &upper
	}
	return p
}

// contextScore folds the available context factors into one 0-100
// favorability rating; each factor maps to a subscore and the subscores are
// averaged.
func contextScore(gridCtx *GridContext, weather *grid.WeatherContext, trafficCtx *traffic.Impact) *float64 {
	var subscores []float64

	if gridCtx != nil {
		// 50 gCO2/kWh is about as clean as grids get, 900 as dirty.
		subscores = append(subscores, clampScore((900-gridCtx.GCO2PerKWh)/(900-50)*100))
	}
	if weather != nil && weather.Success {
		// Impact scores run roughly -20 (favorable) to +25 (unfavorable).
		subscores = append(subscores, clampScore((25-weather.Impact.Score)/45*100))
	}
	if trafficCtx != nil && trafficCtx.Success {
		subscores = append(subscores, clampScore((2.0-trafficCtx.EmissionMultiplier)/1.0*100))
	}

	if len(subscores) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range subscores {
		sum += s
	}
	score := math.Round(sum/float64(len(subscores))*10) / 10
	return &score
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// buildExplanation orders attributions by absolute contribution and adds the
// natural-language summary.
func buildExplanation(ex inference.Explanation, dom estimateDomain.Domain) ModelExplanation {
	contributions := make([]FeatureContribution, len(ex.Attributions))
	for i, a := range ex.Attributions {
		contributions[i] = FeatureContribution{
			Feature:      a.Feature,
			Value:        a.Value,
			ShapValue:    a.ShapValue,
			Contribution: a.ShapValue,
		}
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].ShapValue) > math.Abs(contributions[j].ShapValue)
	})

	return ModelExplanation{
		BaseValue:         ex.BaseValue,
		Prediction:        ex.Prediction,
		FeatureImportance: contributions,
		Explanation:       generateExplanation(contributions, dom),
	}
}

// generateExplanation narrates the top two attributions.
func generateExplanation(contributions []FeatureContribution, dom estimateDomain.Domain) string {
	if len(contributions) == 0 {
		return ""
	}

	var parts []string
	top := contributions[0]

	if dom == estimateDomain.DomainTransport {
		switch top.Feature {
		case "distance_km":
			parts = append(parts, fmt.Sprintf(
				"Distance (%.1f km) is the primary factor, contributing %.3f kg CO2",
				top.Value, math.Abs(top.ShapValue)))
		case "hour":
			timeDesc := "off-peak"
			if (top.Value >= 7 && top.Value <= 9) || (top.Value >= 17 && top.Value <= 19) {
				timeDesc = "rush hour"
			}
			parts = append(parts, fmt.Sprintf(
				"Time of day (%d:00, %s) contributes %.3f kg CO2",
				int(top.Value), timeDesc, math.Abs(top.ShapValue)))
		}
	} else {
		switch top.Feature {
		case "kWh":
			parts = append(parts, fmt.Sprintf(
				"Energy consumption (%.1f kWh) is the main factor, contributing %.3f kg CO2",
				top.Value, math.Abs(top.ShapValue)))
		case "hour":
			var timeDesc string
			switch {
			case top.Value >= 9 && top.Value <= 17:
				timeDesc = "daytime (cleaner grid from solar)"
			case top.Value >= 18 && top.Value <= 21:
				timeDesc = "evening peak (dirtier grid)"
			default:
				timeDesc = "night (moderate grid intensity)"
			}
			effect := "adding"
			if top.ShapValue < 0 {
				effect = "reducing"
			}
			parts = append(parts, fmt.Sprintf(
				"Time (%d:00, %s) is %s %.3f kg CO2",
				int(top.Value), timeDesc, effect, math.Abs(top.ShapValue)))
		}
	}

	if len(contributions) > 1 {
		second := contributions[1]
		switch second.Feature {
		case "is_weekend":
			dayType := "Weekday"
			if second.Value == 1 {
				dayType = "Weekend"
			}
			effect := "increases"
			if second.ShapValue < 0 {
				effect = "reduces"
			}
			parts = append(parts, fmt.Sprintf(
				"%s %s emissions by %.3f kg CO2",
				dayType, effect, math.Abs(second.ShapValue)))
		case "day_of_week":
			days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
			idx := int(second.Value)
			if idx >= 0 && idx < len(days) {
				parts = append(parts, fmt.Sprintf(
					"%s contributes %.3f kg CO2",
					days[idx], math.Abs(second.ShapValue)))
			}
		}
	}

	if len(parts) == 0 {
		return ""
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ". "
		}
		out += p
	}
	return out + "."
}

func valueOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
