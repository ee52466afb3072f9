package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// TransportError is returned for any non-2xx response from the platform API.
// Status carries the upstream HTTP status; Payload carries the decoded error
// body when the upstream sent one.
type TransportError struct {
	Status  int
	Payload interface{}
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("platform request failed with status %d", e.Status)
}

// Client talks to the club-platform REST API using OAuth2 client credentials.
type Client struct {
	BaseURL     string
	OAuthConfig *clientcredentials.Config
	Client      *http.Client
}

// NewClient creates a platform API client authenticated via the
// client-credentials grant.
func NewClient(baseURL string, clientID string, clientSecret string, scopes []string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	oauthConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/oauth2/token",
		Scopes:       scopes,
	}

	return &Client{
		BaseURL:     baseURL,
		OAuthConfig: oauthConfig,
		Client:      oauthConfig.Client(context.Background()),
	}
}

// NewClientWithHTTP creates a platform client around an existing http.Client.
// Used against unauthenticated deployments and in tests.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  httpClient,
	}
}

// Request issues one call against the platform API and decodes the JSON
// response. Non-2xx statuses return a *TransportError; network and decoding
// failures return plain errors.
func (c *Client) Request(ctx context.Context, method string, path string, body interface{}, params url.Values) (interface{}, error) {
	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{
			Status:  res.StatusCode,
			Payload: decodeLoosely(raw),
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return decoded, nil
}

// decodeLoosely decodes an error body as JSON when possible, otherwise keeps
// the raw text so callers can still log it.
func decodeLoosely(raw []byte) interface{} {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(trimmed)
	}
	return decoded
}
