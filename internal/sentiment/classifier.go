// Package sentiment scores recent news coverage for a symbol using a hosted
// text-classification model.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 15 * time.Second

// Classifier labels a piece of text as POSITIVE, NEGATIVE, or NEUTRAL with a
// confidence.
type Classifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

var _ Classifier = (*HTTPClassifier)(nil)

// HTTPClassifier calls a hosted inference endpoint that speaks the standard
// text-classification protocol: POST {"inputs": "..."} returning ranked
// label/score pairs.
type HTTPClassifier struct {
	endpoint   string
	apiToken   string
	httpClient *http.Client
}

// NewHTTPClassifier creates an HTTPClassifier for the given endpoint. The
// token may be empty for unauthenticated endpoints.
func NewHTTPClassifier(endpoint, apiToken string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type classifyRequest struct {
	Inputs string `json:"inputs"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify sends the text to the inference endpoint and returns the
// top-ranked label.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	if c.endpoint == "" {
		return "", 0, fmt.Errorf("classifier endpoint is not configured")
	}

	bodyBytes, err := json.Marshal(classifyRequest{Inputs: text})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("classifier read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("classifier: status %d: %s", resp.StatusCode, string(body))
	}

	// The endpoint returns either [[{label,score},...]] or [{label,score},...]
	// depending on deployment. Try the nested shape first.
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return best(nested[0])
	}
	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return best(flat)
	}
	return "", 0, fmt.Errorf("classifier: unrecognized response: %s", string(body))
}

func best(scores []labelScore) (string, float64, error) {
	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	return top.Label, top.Score, nil
}
