// Package anubis verifies bearer tokens against the Anubis account
// service. Verified principals are cached briefly so the hot request
// path does not introspect the same token over and over.
package anubis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/fantasy-contest/internal/domain/user"
	"github.com/riskibarqy/fantasy-contest/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

const (
	defaultIntrospectPath = "/v1/auth/introspect"
	defaultTimeout        = 5 * time.Second
	defaultCacheTTL       = 30 * time.Second
	defaultCacheEntries   = 10000
	maxResponseBody       = 1 << 20
)

var errAnubisTransient = crerr.New("anubis transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	IntrospectPath string
	// AdminKey authenticates this service to the introspection endpoint.
	AdminKey string
	// CacheTTL bounds how long a verified principal is reused. Zero
	// applies the default, a negative value disables the cache.
	CacheTTL        time.Duration
	CacheMaxEntries int
	Timeout         time.Duration
	Logger          *slog.Logger
	CircuitBreaker  resilience.CircuitBreakerConfig
}

// Client introspects access tokens. A token is sent upstream at most once
// per cache window, concurrent lookups for the same token share one call,
// and the breaker sheds introspection while the account service is down.
type Client struct {
	httpClient     *http.Client
	introspectURL  string
	adminKey       string
	logger         *slog.Logger
	cache          *principalCache
	group          resilience.SingleFlight
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	introspectPath := strings.TrimSpace(cfg.IntrospectPath)
	if introspectPath == "" {
		introspectPath = defaultIntrospectPath
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}
	cacheEntries := cfg.CacheMaxEntries
	if cacheEntries <= 0 {
		cacheEntries = defaultCacheEntries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		introspectURL:  buildURL(cfg.BaseURL, introspectPath),
		adminKey:       strings.TrimSpace(cfg.AdminKey),
		logger:         logger,
		cache:          newPrincipalCache(cacheTTL, cacheEntries),
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// VerifyAccessToken resolves a bearer token to the principal it belongs
// to. Tokens the account service rejects map to ErrUnauthorized, outages
// and a rejected admin key map to ErrDependencyUnavailable.
func (c *Client) VerifyAccessToken(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	// The cache and the flight group key on the token hash so raw
	// credentials never sit in a map.
	key := hashToken(token)
	if principal, ok := c.cache.Get(key); ok {
		return principal, nil
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "anubis circuit breaker rejected introspection", "state", c.breaker.State())
			return user.Principal{}, fmt.Errorf("%w: account service is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		principal, introspectErr := c.introspect(ctx, token)
		c.recordCircuitResult(introspectErr)
		if introspectErr != nil {
			return user.Principal{}, introspectErr
		}
		return principal, nil
	})
	if err != nil {
		if stderrors.Is(err, errAnubisTransient) {
			c.logger.WarnContext(ctx, "anubis introspection failed", "error", err.Error())
			return user.Principal{}, fmt.Errorf("%w: account service introspection: %v", usecase.ErrDependencyUnavailable, err)
		}
		return user.Principal{}, err
	}

	principal, ok := result.(user.Principal)
	if !ok {
		return user.Principal{}, crerr.Newf("unexpected introspect result type %T", result)
	}
	c.cache.Set(key, principal)

	return principal, nil
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	encoded, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, fmt.Errorf("marshal introspect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(encoded))
	if err != nil {
		return user.Principal{}, fmt.Errorf("create introspect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.adminKey != "" {
		req.Header.Set("x-admin-key", c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: introspect request: %v", errAnubisTransient, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return user.Principal{}, fmt.Errorf("%w: introspection denied", usecase.ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		// 403 means our admin key was rejected, which is an operator
		// problem rather than a bad caller token.
		return user.Principal{}, fmt.Errorf("%w: introspection admin key rejected", usecase.ErrDependencyUnavailable)
	case isRetryableStatus(resp.StatusCode):
		return user.Principal{}, fmt.Errorf("%w: introspection status=%d", errAnubisTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return user.Principal{}, crerr.Newf("introspection status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: read introspect response: %v", errAnubisTransient, err)
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return user.Principal{}, fmt.Errorf("unmarshal introspect response: %w", err)
	}

	if !decoded.Active {
		return user.Principal{}, fmt.Errorf("%w: inactive token", usecase.ErrUnauthorized)
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, crerr.New("introspect response missing user_id")
	}

	return user.Principal{
		UserID: decoded.UserID,
		Email:  decoded.Email,
	}, nil
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled || c.breaker == nil {
		return
	}
	if err == nil {
		c.breaker.RecordSuccess()
		return
	}
	if stderrors.Is(err, errAnubisTransient) {
		c.breaker.RecordFailure()
		return
	}
	// Rejected tokens are healthy answers from the account service.
	c.breaker.RecordSuccess()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func buildURL(baseURL, path string) string {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return baseURL + path
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func isRetryableStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status >= http.StatusInternalServerError
}
