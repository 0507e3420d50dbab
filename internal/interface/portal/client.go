package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/utils"
)

// Portal paths. The portal is a server-rendered ASP.NET-style site; every
// page comes back as HTML for a browser, never as structured data.
const (
	loginPath   = "/Account/Login"
	livePath    = "/PhoneCalls"
	historyPath = "/PhoneCalls/History"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrNotAuthenticated is returned when the portal answered with its login
// page instead of the requested one.
var ErrNotAuthenticated = errors.New("portal session is not authenticated")

// Client is the authenticated HTTP session against the portal. Cookies
// carry the session; a request that lands on the login page means the
// session is gone.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
	logger   logger.Logger
}

// NewClient creates a portal session client
func NewClient(baseURL, username, password string, timeout time.Duration, logger logger.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		http:     &http.Client{Jar: jar, Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		logger:   logger,
	}, nil
}

// Login submits the portal login form and verifies the session took.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"UserName":   {c.username},
		"Password":   {c.password},
		"RememberMe": {"true"},
	}

	_, body, err := c.PostForm(ctx, loginPath, form)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if utils.ContainsLoginMarker(body) {
		return ErrNotAuthenticated
	}

	c.logger.Info("Portal login succeeded", "user", c.username)
	return nil
}

// FetchLivePage fetches the live-calls page.
func (c *Client) FetchLivePage(ctx context.Context) (string, error) {
	return c.get(ctx, livePath)
}

// FetchHistoryPage fetches one page of the call history.
func (c *Client) FetchHistoryPage(ctx context.Context, page int) (string, error) {
	return c.get(ctx, fmt.Sprintf("%s?page=%d", historyPath, page))
}

// PostForm submits a form and returns the final URL after redirects plus
// the response body.
func (c *Client) PostForm(ctx context.Context, path string, values url.Values) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(values.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return "", "", err
	}
	return resp.Request.URL.String(), body, nil
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return c.readBody(resp)
}

func (c *Client) readBody(resp *http.Response) (string, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("portal returned status %d for %s", resp.StatusCode, resp.Request.URL.Path)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
