// Package inference is the client for the external model-serving API that
// owns the trained estimators and their SHAP explainers.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Feature is one named model input.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Request asks the model server for predictions over one feature vector.
type Request struct {
	Domain   string    `json:"domain"`
	Features []Feature `json:"features"`
}

// ModelResult is one model's point estimate; Std is present only for models
// that quantify uncertainty (bayesian).
type ModelResult struct {
	Mean float64  `json:"mean"`
	Std  *float64 `json:"std,omitempty"`
}

// Attribution is one feature's SHAP contribution to a model's prediction.
type Attribution struct {
	Feature   string  `json:"feature"`
	Value     float64 `json:"value"`
	ShapValue float64 `json:"shap_value"`
}

// Explanation carries SHAP output for one tree model.
type Explanation struct {
	BaseValue    float64       `json:"base_value"`
	Prediction   float64       `json:"prediction"`
	Attributions []Attribution `json:"attributions"`
}

// Result is the model server's response: per-model predictions plus SHAP
// explanations for the models that support them.
type Result struct {
	Predictions  map[string]ModelResult `json:"predictions"`
	Explanations map[string]Explanation `json:"explanations"`
}

// Client calls the model server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an inference client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Predict runs all loaded models for the domain over the feature vector.
func (c *Client) Predict(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	if len(result.Predictions) == 0 {
		return nil, fmt.Errorf("model server returned no predictions")
	}
	return &result, nil
}
