// Package reddit is a minimal Reddit API client for searching a subreddit
// and reading post comments.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultAuthURL = "https://www.reddit.com"
	defaultAPIURL  = "https://oauth.reddit.com"
	permalinkBase  = "https://www.reddit.com"

	maxPageSize = 100

	// Tokens are refreshed this long before they expire.
	tokenExpiryMargin = time.Minute
)

// Credentials authenticate a script application with the password grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// AppName is appended to the user agent.
	AppName string
}

// Client implements domain.ForumClient for one subreddit. It logs in lazily
// and refreshes its token when it expires.
type Client struct {
	authURL    string
	apiURL     string
	subreddit  string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the authentication and API hosts.
func WithBaseURLs(authURL, apiURL string) Option {
	return func(c *Client) {
		c.authURL = strings.TrimRight(authURL, "/")
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithRateLimit paces API requests. Reddit allows 100 requests per minute for
// OAuth clients.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewClient creates a new Reddit API client for subreddit.
func NewClient(subreddit string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		authURL:   defaultAuthURL,
		apiURL:    defaultAPIURL,
		subreddit: subreddit,
		creds:     creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) userAgent() string {
	return strings.TrimSpace(c.creds.Username + " " + c.creds.AppName)
}

// Login exchanges the credentials for an access token.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent())
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("access token: %s", resp.Error)
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("access token: empty token in response")
	}

	c.accessToken = resp.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryMargin)
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" || time.Now().After(c.expiresAt) {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// Me returns the name of the authenticated account.
func (c *Client) Me(ctx context.Context) (string, error) {
	var resp meResponse
	if err := c.get(ctx, "/api/v1/me", nil, &resp); err != nil {
		return "", fmt.Errorf("me: %w", err)
	}
	return resp.Name, nil
}

// Search returns posts of the subreddit matching q, following pagination
// until q.Limit posts were read or the listing ends. Comments are not loaded.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RawPost, error) {
	var (
		posts []domain.RawPost
		after string
	)
	for {
		pageSize := maxPageSize
		if q.Limit > 0 {
			pageSize = min(pageSize, q.Limit-len(posts))
		}

		params := url.Values{
			"q":           {q.Query},
			"restrict_sr": {"1"},
			"limit":       {strconv.Itoa(pageSize)},
			"raw_json":    {"1"},
			"type":        {"link"},
		}
		if q.Sort != "" {
			params.Set("sort", q.Sort)
		}
		if q.TimeWindow != "" {
			params.Set("t", q.TimeWindow)
		}
		if after != "" {
			params.Set("after", after)
		}

		var page listing
		if err := c.get(ctx, "/r/"+c.subreddit+"/search", params, &page); err != nil {
			return nil, fmt.Errorf("search %q: %w", q.Query, err)
		}

		for _, t := range page.Data.Children {
			if t.Kind != kindLink {
				continue
			}
			post, err := parseLink(t)
			if err != nil {
				return nil, err
			}
			posts = append(posts, post)
		}

		after = page.Data.After
		if after == "" || len(page.Data.Children) == 0 {
			break
		}
		if q.Limit > 0 && len(posts) >= q.Limit {
			break
		}
	}

	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, nil
}

// Comments returns the top-level comments of a post in listing order.
// "Load more" stubs are skipped.
func (c *Client) Comments(ctx context.Context, postID string) ([]domain.RawComment, error) {
	params := url.Values{
		"raw_json": {"1"},
		"depth":    {"1"},
		"limit":    {"500"},
	}

	// The response holds the post listing followed by the comment listing.
	var listings []listing
	if err := c.get(ctx, "/r/"+c.subreddit+"/comments/"+postID, params, &listings); err != nil {
		return nil, fmt.Errorf("comments of %s: %w", postID, err)
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("comments of %s: unexpected response with %d listings", postID, len(listings))
	}
	return parseComments(listings[1])
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	u := c.apiURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.userAgent())

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
