// Package transport provides the two venue-facing socket flavors: a blocking
// REST client for long-poll venues and a persistent websocket client with
// reconnect for streaming venues.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	restUserAgent = "Mozilla/5.0 (Windows NT 6.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/57.0.2987.133 Safari/537.36"
	restTimeout   = 5 * time.Second
	restRedirects = 5
)

// RESTClient issues blocking JSON requests against venue endpoints.
type RESTClient struct {
	http *http.Client
	log  zerolog.Logger
}

// NewRESTClient builds a client with the enforced transport settings. proxy
// may be empty.
func NewRESTClient(proxy string, log zerolog.Logger) (*RESTClient, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   restTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= restRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return &RESTClient{http: client, log: log}, nil
}

// Request fetches endpoint and returns the body when it is valid JSON.
// Transport and parse failures are logged and yield nil, never an error:
// callers detect trouble by the fields they fail to find.
func (c *RESTClient) Request(ctx context.Context, endpoint string) json.RawMessage {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Error().Err(err).Str("url", endpoint).Msg("build request")
		return nil
	}
	req.Header.Set("User-Agent", restUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", endpoint).Msg("request failed")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Str("url", endpoint).Msg("read response")
		return nil
	}
	if !json.Valid(body) {
		c.log.Error().Str("url", endpoint).Int("status", resp.StatusCode).Msg("response is not JSON")
		return nil
	}
	return body
}
