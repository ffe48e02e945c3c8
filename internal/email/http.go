package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const notificationPath = "v1/email/notification/"

// HTTPSender hands the verify link to an external notification service,
// which renders and delivers the email itself.
type HTTPSender struct {
	client   *http.Client
	endpoint *url.URL
	token    string
}

func NewHTTPSender(baseURL, apiToken string, client *http.Client) (*HTTPSender, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse notification api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("notification api url %q must be absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		client:   client,
		endpoint: base.JoinPath(notificationPath),
		token:    apiToken,
	}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notification service returned %d: %s", e.Code, e.Body)
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	u := *s.endpoint
	q := u.Query()
	q.Set("user_email", msg.To)
	q.Set("token", msg.Link)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-TOKEN", s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool
	return nil
}
