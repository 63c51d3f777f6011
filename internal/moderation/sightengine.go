// Package moderation screens image payloads for policy violations using the
// Sightengine content classification API.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.sightengine.com/1.0"
	checkEndpoint  = "/check.json"

	// models requested from the classifier, one per screened category.
	modelList = "nudity-2.1,weapon,recreational_drug,offensive-2.0,gore-2.0,violence,self-harm"

	// rejectThreshold is the score above which a category counts as a
	// violation. Strictly greater-than: a score of exactly 0.5 admits.
	rejectThreshold = 0.5

	requestTimeout = 15 * time.Second
)

// ErrUnavailable is returned when the provider cannot be reached, rejects the
// call, or answers with something that cannot be classified. Callers must
// treat it as a rejection (fail-closed), never as an admission.
var ErrUnavailable = errors.New("moderation provider unavailable")

// Decision is the admit/reject outcome for a single image.
type Decision struct {
	Admitted bool
	// Category names the first violating category when rejected.
	Category string
	// Score is the violating category's risk score.
	Score float64
}

// Checker evaluates image bytes against the content policy.
type Checker interface {
	Check(ctx context.Context, data []byte, filename string) (Decision, error)
}

// Client is a Sightengine-backed Checker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiUser    string
	apiSecret  string
}

// NewClient creates a moderation client with the given API credentials.
func NewClient(apiUser, apiSecret string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		apiUser:    apiUser,
		apiSecret:  apiSecret,
	}
}

// NewClientWithBaseURL is NewClient pointed at a non-default endpoint.
func NewClientWithBaseURL(apiUser, apiSecret, baseURL string) *Client {
	c := NewClient(apiUser, apiSecret)
	c.baseURL = baseURL
	return c
}

// score is one category entry of a check response. The API returns either a
// bare probability or an object carrying the probability in a "raw" field;
// both shapes decode into the same value. Unknown shapes fail the decode.
type score struct {
	value   float64
	present bool
}

func (s *score) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		s.value, s.present = f, true
		return nil
	}

	var nested struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(b, &nested); err != nil {
		return fmt.Errorf("unexpected category score shape: %s", b)
	}
	if nested.Raw != nil {
		s.value, s.present = *nested.Raw, true
	}
	return nil
}

// checkResponse enumerates the fixed category set. Categories absent from the
// response decode as not-present and are treated as non-violations.
type checkResponse struct {
	Status           string `json:"status"`
	Nudity           score  `json:"nudity"`
	Weapon           score  `json:"weapon"`
	RecreationalDrug score  `json:"recreational_drug"`
	Offensive        score  `json:"offensive"`
	Gore             score  `json:"gore"`
	Violence         score  `json:"violence"`
	SelfHarm         score  `json:"self-harm"`
}

// violation returns the first category whose score exceeds the threshold.
func (r *checkResponse) violation() (string, float64, bool) {
	categories := []struct {
		name string
		s    score
	}{
		{"nudity", r.Nudity},
		{"weapon", r.Weapon},
		{"recreational_drug", r.RecreationalDrug},
		{"offensive", r.Offensive},
		{"gore", r.Gore},
		{"violence", r.Violence},
		{"self-harm", r.SelfHarm},
	}
	for _, c := range categories {
		if c.s.present && c.s.value > rejectThreshold {
			return c.name, c.s.value, true
		}
	}
	return "", 0, false
}

// Check submits the image to the classifier and converts its verdict into an
// admit/reject decision. Any provider failure returns an error wrapping
// ErrUnavailable; a Decision is only returned for a successful classification.
func (c *Client) Check(ctx context.Context, data []byte, filename string) (Decision, error) {
	body, contentType, err := c.buildRequestBody(data, filename)
	if err != nil {
		return Decision{}, fmt.Errorf("build moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkEndpoint, body)
	if err != nil {
		return Decision{}, fmt.Errorf("create moderation request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed checkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Decision{}, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}

	if parsed.Status != "success" {
		return Decision{}, fmt.Errorf("%w: provider status %q", ErrUnavailable, parsed.Status)
	}

	if name, s, found := parsed.violation(); found {
		return Decision{Admitted: false, Category: name, Score: s}, nil
	}

	return Decision{Admitted: true}, nil
}

// buildRequestBody assembles the multipart form: the model list, the API
// credentials, and the image bytes as the "media" part.
func (c *Client) buildRequestBody(data []byte, filename string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := map[string]string{
		"models":     modelList,
		"api_user":   c.apiUser,
		"api_secret": c.apiSecret,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("media", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write media part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return buf, mw.FormDataContentType(), nil
}
