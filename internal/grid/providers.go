package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// lbsPerMWhToGramsPerKWh converts WattTime's co2_moer signal units.
const lbsPerMWhToGramsPerKWh = 453.592 / 1000.0

// UKCarbonIntensityClient reads the free national UK Carbon Intensity API.
type UKCarbonIntensityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewUKCarbonIntensityClient creates a client for the UK intensity API.
func NewUKCarbonIntensityClient(baseURL string) *UKCarbonIntensityClient {
	return &UKCarbonIntensityClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Current returns the latest actual UK grid intensity in gCO2/kWh.
func (c *UKCarbonIntensityClient) Current(ctx context.Context) (Intensity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/intensity", nil)
	if err != nil {
		return Intensity{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intensity{}, fmt.Errorf("uk intensity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intensity{}, fmt.Errorf("uk intensity API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			From      string `json:"from"`
			Intensity struct {
				Actual *float64 `json:"actual"`
			} `json:"intensity"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Intensity{}, fmt.Errorf("failed to decode uk intensity response: %w", err)
	}
	if len(payload.Data) == 0 || payload.Data[0].Intensity.Actual == nil {
		return Intensity{}, fmt.Errorf("uk intensity API returned no actual value")
	}

	return Intensity{
		GCO2PerKWh: *payload.Data[0].Intensity.Actual,
		Source:     "UK Carbon Intensity API (Free)",
		Location:   "United Kingdom",
		Timestamp:  payload.Data[0].From,
		Confidence: ConfidenceHigh,
		Method:     MethodAPI,
	}, nil
}

// WattTimeClient reads the WattTime marginal-emissions forecast for CAISO.
// Login happens lazily and the token is cached for the client's lifetime.
type WattTimeClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewWattTimeClient creates a WattTime client. Credentials come as
// "username:password"; an empty string disables the client.
func NewWattTimeClient(baseURL, credentials string) *WattTimeClient {
	c := &WattTimeClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	if user, pass, found := strings.Cut(credentials, ":"); found {
		c.username = user
		c.password = pass
	}
	return c
}

// Enabled reports whether credentials were provided.
func (c *WattTimeClient) Enabled() bool {
	return c.username != ""
}

func (c *WattTimeClient) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/login", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("watttime login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watttime login returned status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode watttime login response: %w", err)
	}
	c.token = payload.Token
	return c.token, nil
}

// Current returns the latest CAISO_NORTH marginal intensity in gCO2/kWh.
func (c *WattTimeClient) Current(ctx context.Context) (Intensity, error) {
	token, err := c.login(ctx)
	if err != nil {
		return Intensity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/forecast", nil)
	if err != nil {
		return Intensity{}, err
	}
	q := req.URL.Query()
	q.Set("region", "CAISO_NORTH")
	q.Set("signal_type", "co2_moer")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intensity{}, fmt.Errorf("watttime forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intensity{}, fmt.Errorf("watttime forecast returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value     float64 `json:"value"`
			PointTime string  `json:"point_time"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Intensity{}, fmt.Errorf("failed to decode watttime response: %w", err)
	}
	if len(payload.Data) == 0 {
		return Intensity{}, fmt.Errorf("watttime returned no forecast points")
	}

	return Intensity{
		GCO2PerKWh: round1(payload.Data[0].Value * lbsPerMWhToGramsPerKWh),
		Source:     "WattTime API",
		Location:   "California (CAISO_NORTH)",
		Timestamp:  payload.Data[0].PointTime,
		Confidence: ConfidenceHigh,
		Method:     MethodAPI,
	}, nil
}

// ElectricityMapsClient reads the ElectricityMaps carbon-intensity endpoint
// for the California ISO zone.
type ElectricityMapsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewElectricityMapsClient creates a client; an empty key disables it.
func NewElectricityMapsClient(baseURL, apiKey string) *ElectricityMapsClient {
	return &ElectricityMapsClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether an API key was provided.
func (c *ElectricityMapsClient) Enabled() bool {
	return c.apiKey != ""
}

// Current returns the latest California intensity in gCO2/kWh.
func (c *ElectricityMapsClient) Current(ctx context.Context) (Intensity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/carbon-intensity/latest", nil)
	if err != nil {
		return Intensity{}, err
	}
	q := req.URL.Query()
	q.Set("zone", "US-CAL-CISO")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("auth-token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intensity{}, fmt.Errorf("electricitymaps request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intensity{}, fmt.Errorf("electricitymaps returned status %d", resp.StatusCode)
	}

	var payload struct {
		CarbonIntensity float64 `json:"carbonIntensity"`
		Datetime        string  `json:"datetime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Intensity{}, fmt.Errorf("failed to decode electricitymaps response: %w", err)
	}

	return Intensity{
		GCO2PerKWh: payload.CarbonIntensity,
		Source:     "ElectricityMaps API",
		Location:   "California",
		Timestamp:  payload.Datetime,
		Confidence: ConfidenceHigh,
		Method:     MethodAPI,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
