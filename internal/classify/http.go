package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gdevlabs/triage-agent/internal/triage"
)

// HTTPClassifier calls a classification HTTP endpoint. Requests are bounded by
// the configured timeout and retried with exponential backoff on transient
// failures; 4xx responses are permanent.
type HTTPClassifier struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries uint64
	httpClient *http.Client
}

// NewHTTPClassifier returns a classifier for the service at baseURL.
func NewHTTPClassifier(baseURL, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		maxRetries: 2,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}

// Classify posts the message to the classification service.
func (c *HTTPClassifier) Classify(ctx context.Context, text, userID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *Result
	operation := func() error {
		r, err := c.doRequest(ctx, text, userID)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return result, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func (c *HTTPClassifier) doRequest(ctx context.Context, text, userID string) (*Result, error) {
	body, err := json.Marshal(classifyRequest{Text: text, UserID: userID})
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("classifier returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("classifier returned %d", resp.StatusCode))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode classifier response: %w", err))
	}
	if err := validateResult(&result); err != nil {
		return nil, backoff.Permanent(err)
	}
	if result.Extracted.Platform == "" {
		result.Extracted.Platform = "unknown"
	}
	if result.Extracted.UserID == "" {
		result.Extracted.UserID = userID
	}
	return &result, nil
}

func validateResult(r *Result) error {
	if !triage.ValidCategory(r.Classification.Category) {
		return fmt.Errorf("unknown category %q", r.Classification.Category)
	}
	if !triage.ValidUrgency(r.Classification.Urgency) {
		return fmt.Errorf("unknown urgency %q", r.Classification.Urgency)
	}
	if r.Classification.Confidence < 0 || r.Classification.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Classification.Confidence)
	}
	return nil
}
