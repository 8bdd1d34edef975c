package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Authorizer returns the signature for subscribing socketID to a private channel.
type Authorizer interface {
	Authorize(ctx context.Context, socketID string, channel string) (string, error)
}

type AuthorizerFunc func(ctx context.Context, socketID string, channel string) (string, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, socketID string, channel string) (string, error) {
	return f(ctx, socketID, channel)
}

// HTTPAuthorizer posts to the API's broadcasting auth endpoint with the
// session bearer token.
type HTTPAuthorizer struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewHTTPAuthorizer(endpoint string, token string, timeout time.Duration) *HTTPAuthorizer {
	return &HTTPAuthorizer{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAuthorizer) Authorize(ctx context.Context, socketID string, channel string) (string, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("authorize %s: %w", channel, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("authorize %s: %w", channel, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("authorize %s: status %d", channel, resp.StatusCode)
	}

	var out struct {
		Auth string `json:"auth"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("authorize %s: %w", channel, err)
	}
	if out.Auth == "" {
		return "", fmt.Errorf("authorize %s: empty auth", channel)
	}
	return out.Auth, nil
}
