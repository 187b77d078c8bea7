package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// WeatherImpact scores how much current weather shifts energy demand and
// therefore emissions, as a percentage adjustment.
type WeatherImpact struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// WeatherContext is the current-weather block attached to energy
// predictions.
type WeatherContext struct {
	Success     bool          `json:"success"`
	Location    string        `json:"location"`
	Temperature float64       `json:"temperature_c"`
	WindSpeed   float64       `json:"wind_speed_kmh"`
	Impact      WeatherImpact `json:"impact"`
}

// WeatherClient reads current conditions from the Open-Meteo forecast API,
// which needs no credentials.
type WeatherClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWeatherClient creates a weather client for the given base URL.
func NewWeatherClient(baseURL string) *WeatherClient {
	return &WeatherClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Current fetches current weather for a coordinate and derives the demand
// impact score.
func (c *WeatherClient) Current(ctx context.Context, location string, lat, lon float64) (WeatherContext, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast", nil)
	if err != nil {
		return WeatherContext{}, err
	}
	q := req.URL.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WeatherContext{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WeatherContext{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
		} `json:"current_weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WeatherContext{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	temp := payload.CurrentWeather.Temperature
	wind := payload.CurrentWeather.WindSpeed
	return WeatherContext{
		Success:     true,
		Location:    location,
		Temperature: temp,
		WindSpeed:   wind,
		Impact:      impactFor(temp, wind),
	}, nil
}

// impactFor scores weather-driven demand. Heating and cooling extremes push
// demand (and emissions) up; strong wind typically means cleaner supply.
func impactFor(tempC, windKmh float64) WeatherImpact {
	score := 0.0

	switch {
	case tempC <= 0:
		score += 15 // heating demand
	case tempC < 10:
		score += 8
	case tempC > 30:
		score += 12 // cooling demand
	case tempC > 25:
		score += 6
	}

	if windKmh > 30 {
		score -= 8 // wind generation displaces fossil supply
	} else if windKmh > 20 {
		score -= 4
	}

	score = math.Max(-20, math.Min(25, score))

	var desc string
	switch {
	case score >= 10:
		desc = "Weather is driving demand up; expect higher emissions."
	case score >= 3:
		desc = "Weather is adding modest demand."
	case score <= -5:
		desc = "Windy conditions favor cleaner generation."
	default:
		desc = "Weather has little effect on the grid right now."
	}

	return WeatherImpact{Score: score, Description: desc}
}
