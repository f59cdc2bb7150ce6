// Package httpclient provides basic http functions for upstream feed requests
package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client wraps an http.Client with default headers applied to every request.
// Upstream operator APIs authenticate with either a bearer token or an
// api key header, both are supported through Headers.
type Client struct {
	httpClient *http.Client
	Headers    map[string]string
}

// MakeClient builds a Client with the given timeout and default headers
func MakeClient(timeout time.Duration, headers map[string]string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		Headers:    headers,
	}
}

// GetJson performs a GET against requestUrl with optional query parameters and
// unmarshals the response body into target. Returns the http status code when a
// response was received, or zero when the request itself failed.
func (c *Client) GetJson(requestUrl string, params map[string]string, target interface{}) (int, error) {
	req, err := http.NewRequest(http.MethodGet, requestUrl, nil)
	if err != nil {
		return 0, fmt.Errorf("building request for %s: %w", requestUrl, err)
	}
	if len(params) > 0 {
		q := make(url.Values)
		for key, value := range params {
			q.Set(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting %s: %w", requestUrl, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		//drain the body so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("non-OK status %d from %s", resp.StatusCode, requestUrl)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response from %s: %w", requestUrl, err)
	}
	if err = json.Unmarshal(body, target); err != nil {
		return resp.StatusCode, fmt.Errorf("unmarshaling response from %s: %w", requestUrl, err)
	}
	return resp.StatusCode, nil
}
