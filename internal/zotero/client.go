// Package zotero is a rate-limited client for the Zotero Web API v3.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public Zotero API.
	DefaultBaseURL = "https://api.zotero.org"

	apiVersion = "3"

	defaultRPS     = 5.0
	defaultBurst   = 5
	defaultTimeout = 30 * time.Second

	// pageSize is the largest page the API serves.
	pageSize = 100

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 4 << 10
)

// Config holds client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	UserID            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is a rate-limited Zotero API client. Requests are paced per library scope.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	userID  string
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, _ := url.Parse(cfg.BaseURL)

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			// File downloads redirect to object storage; the API key must not follow.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				if base == nil || req.URL.Host != base.Host {
					req.Header.Del("Zotero-API-Key")
				}
				return nil
			},
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		userID:  cfg.UserID,
		limiter: ratelimit.New(cfg.RequestsPerSecond, defaultBurst),
		logger:  logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// UserScope returns the scope of the configured personal library.
func (c *Client) UserScope() domain.Scope {
	return domain.NewScope(domain.LibraryUser, c.userID)
}

func libraryPrefix(scope domain.Scope) string {
	if scope.Type == domain.LibraryGroup {
		return "/groups/" + url.PathEscape(scope.ID)
	}
	return "/users/" + url.PathEscape(scope.ID)
}

// newRequest builds an authenticated GET for path under the API root.
func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("User-Agent", "zotairo/1.0")
	return req, nil
}

// do executes a request with rate limiting and maps non-2xx statuses to sentinels.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, scope domain.Scope, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx, scope.String()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := c.newRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("zotero request", "scope", scope.String(), "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, string(body))
	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// getJSON fetches one page and decodes it into out, returning the Total-Results header.
func (c *Client) getJSON(ctx context.Context, scope domain.Scope, path string, query url.Values, out any) (int, error) {
	resp, err := c.do(ctx, scope, path, query)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	total := -1
	if h := resp.Header.Get("Total-Results"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			total = n
		}
	}
	return total, nil
}

// listAll follows start/limit pagination until every entry is collected.
func listAll[T any](ctx context.Context, c *Client, scope domain.Scope, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(pageSize))

	all := []T{}
	for start := 0; ; {
		query.Set("start", strconv.Itoa(start))

		var page []T
		total, err := c.getJSON(ctx, scope, path, query, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		start += len(page)

		if len(page) == 0 {
			return all, nil
		}
		if total >= 0 && start >= total {
			return all, nil
		}
		if total < 0 && len(page) < pageSize {
			return all, nil
		}
	}
}

// ListGroups returns the group libraries of the configured user.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	scope := c.UserScope()
	groups, err := listAll[Group](ctx, c, scope, "/users/"+url.PathEscape(c.userID)+"/groups", nil)
	if err != nil {
		return nil, wrapError("listGroups", scope, "", err)
	}
	return groups, nil
}

// ListCollections returns every collection of a library, flattened.
func (c *Client) ListCollections(ctx context.Context, scope domain.Scope) ([]Collection, error) {
	colls, err := listAll[Collection](ctx, c, scope, libraryPrefix(scope)+"/collections", nil)
	if err != nil {
		return nil, wrapError("listCollections", scope, "", err)
	}
	return colls, nil
}

// ListSubcollections returns the direct children of a collection.
func (c *Client) ListSubcollections(ctx context.Context, scope domain.Scope, key string) ([]Collection, error) {
	path := libraryPrefix(scope) + "/collections/" + url.PathEscape(key) + "/collections"
	colls, err := listAll[Collection](ctx, c, scope, path, nil)
	if err != nil {
		return nil, wrapError("listSubcollections", scope, key, err)
	}
	return colls, nil
}

func typeFilter(itemType string) url.Values {
	q := url.Values{}
	if itemType != "" {
		q.Set("itemType", itemType)
	}
	return q
}

// ListTopItems returns top-level items, optionally filtered by an itemType expression.
func (c *Client) ListTopItems(ctx context.Context, scope domain.Scope, itemType string) ([]Item, error) {
	items, err := listAll[Item](ctx, c, scope, libraryPrefix(scope)+"/items/top", typeFilter(itemType))
	if err != nil {
		return nil, wrapError("listTopItems", scope, "", err)
	}
	return items, nil
}

// ListCollectionItems returns the items of a collection, optionally filtered by itemType.
func (c *Client) ListCollectionItems(ctx context.Context, scope domain.Scope, key, itemType string) ([]Item, error) {
	path := libraryPrefix(scope) + "/collections/" + url.PathEscape(key) + "/items"
	items, err := listAll[Item](ctx, c, scope, path, typeFilter(itemType))
	if err != nil {
		return nil, wrapError("listCollectionItems", scope, key, err)
	}
	return items, nil
}

// ListItemsByType returns every item of one type anywhere in the library.
func (c *Client) ListItemsByType(ctx context.Context, scope domain.Scope, itemType string) ([]Item, error) {
	items, err := listAll[Item](ctx, c, scope, libraryPrefix(scope)+"/items", typeFilter(itemType))
	if err != nil {
		return nil, wrapError("listItemsByType", scope, itemType, err)
	}
	return items, nil
}

// GetItem returns one item.
func (c *Client) GetItem(ctx context.Context, scope domain.Scope, key string) (*Item, error) {
	var item Item
	path := libraryPrefix(scope) + "/items/" + url.PathEscape(key)
	if _, err := c.getJSON(ctx, scope, path, nil, &item); err != nil {
		return nil, wrapError("getItem", scope, key, err)
	}
	return &item, nil
}

// ListChildren returns attachments, notes and annotations under an item.
func (c *Client) ListChildren(ctx context.Context, scope domain.Scope, key string) ([]Item, error) {
	path := libraryPrefix(scope) + "/items/" + url.PathEscape(key) + "/children"
	items, err := listAll[Item](ctx, c, scope, path, nil)
	if err != nil {
		return nil, wrapError("listChildren", scope, key, err)
	}
	return items, nil
}

// DownloadFile streams an attachment's stored file into w.
func (c *Client) DownloadFile(ctx context.Context, scope domain.Scope, key string, w io.Writer) (int64, error) {
	path := libraryPrefix(scope) + "/items/" + url.PathEscape(key) + "/file"
	resp, err := c.do(ctx, scope, path, nil)
	if err != nil {
		return 0, wrapError("downloadFile", scope, key, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, wrapError("downloadFile", scope, key, fmt.Errorf("read body: %w", err))
	}
	return n, nil
}
