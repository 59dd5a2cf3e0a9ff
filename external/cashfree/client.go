package cashfree

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/platform/logging"
	"github.com/riskibarqy/fantasy-contest/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

const (
	defaultBaseURL      = "https://api.cashfree.com/payout"
	defaultTransferMode = "banktransfer"
	defaultCurrency     = "INR"
	apiVersion          = "2024-01-01"
	transfersPath       = "/transfers"
	maxResponseBody     = 1 << 20
)

var errCashfreeTransient = crerr.New("cashfree transient failure")

type ClientConfig struct {
	HTTPClient     *fasthttp.Client
	BaseURL        string
	ClientID       string
	ClientSecret   string
	TransferMode   string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client submits withdrawal payouts to Cashfree's transfer API. The
// ledger reference doubles as the provider-side transfer id, so a
// resubmitted order lands on the same transfer instead of paying twice.
type Client struct {
	httpClient     *fasthttp.Client
	baseURL        string
	clientID       string
	clientSecret   string
	transferMode   string
	timeout        time.Duration
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transferMode := strings.TrimSpace(cfg.TransferMode)
	if transferMode == "" {
		transferMode = defaultTransferMode
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		clientID:       strings.TrimSpace(cfg.ClientID),
		clientSecret:   strings.TrimSpace(cfg.ClientSecret),
		transferMode:   transferMode,
		timeout:        timeout,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type transferRequest struct {
	TransferID  string             `json:"transfer_id"`
	Amount      float64            `json:"transfer_amount"`
	Currency    string             `json:"transfer_currency"`
	Mode        string             `json:"transfer_mode"`
	Remarks     string             `json:"transfer_remarks,omitempty"`
	Beneficiary beneficiaryDetails `json:"beneficiary_details"`
}

type beneficiaryDetails struct {
	BeneficiaryID string `json:"beneficiary_id"`
}

type transferResponse struct {
	TransferID        string `json:"transfer_id"`
	CfTransferID      string `json:"cf_transfer_id"`
	Status            string `json:"status"`
	StatusCode        string `json:"status_code"`
	StatusDescription string `json:"status_description"`
}

// SubmitPayout creates a transfer order for the withdrawal's wallet
// hold. Concurrent submissions of the same reference collapse into one
// request, and a provider-side duplicate resolves to the existing order.
func (c *Client) SubmitPayout(ctx context.Context, tx ledger.Transaction) (string, error) {
	reference := strings.TrimSpace(tx.Reference)
	if reference == "" {
		return "", fmt.Errorf("payout reference is required")
	}
	if strings.TrimSpace(tx.UserID) == "" {
		return "", fmt.Errorf("payout user id is required")
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "cashfree circuit breaker rejected request", "state", c.breaker.State())
			return "", fmt.Errorf("%w: payout provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	currency := strings.TrimSpace(tx.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	body, err := sonic.Marshal(transferRequest{
		TransferID: reference,
		// The order matches the wallet hold exactly. Amount is stored
		// signed, debits negative.
		Amount:      tx.Amount.Abs().Round(2).InexactFloat64(),
		Currency:    currency,
		Mode:        c.transferMode,
		Remarks:     tx.Description,
		Beneficiary: beneficiaryDetails{BeneficiaryID: tx.UserID},
	})
	if err != nil {
		return "", fmt.Errorf("marshal transfer request: %w", err)
	}

	out, err, _ := c.flight.Do(reference, func() (any, error) {
		externalRef, reqErr := c.submitTransfer(ctx, reference, body)
		if c.circuitEnabled {
			if reqErr != nil && isCashfreeCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return externalRef, reqErr
	})
	if err != nil {
		return "", err
	}

	externalRef, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("unexpected transfer result type %T", out)
	}
	return externalRef, nil
}

func (c *Client) submitTransfer(ctx context.Context, reference string, body []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		status, raw, err := c.send(fasthttp.MethodPost, c.baseURL+transfersPath, body)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%w: send transfer request: %s", errCashfreeTransient, c.sanitizeSecretText(err.Error()))
		case status >= 200 && status < 300:
			return parseTransferOrder(raw)
		case status == fasthttp.StatusConflict:
			// The transfer id already exists upstream, so a replayed
			// withdrawal resolves to the original order.
			return c.lookupTransfer(ctx, reference)
		case isRetryableStatus(status):
			lastErr = fmt.Errorf("%w: provider status=%d body=%s", errCashfreeTransient, status, abbreviateBody(raw))
		default:
			return "", fmt.Errorf("provider status=%d body=%s", status, abbreviateBody(raw))
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * 500 * time.Millisecond
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("transfer request failed")
	}
	c.logger.WarnContext(ctx, "cashfree transfer failed", "reference", reference, "error", lastErr)
	return "", lastErr
}

func (c *Client) lookupTransfer(ctx context.Context, reference string) (string, error) {
	status, raw, err := c.send(fasthttp.MethodGet, c.baseURL+transfersPath+"?transfer_id="+reference, nil)
	if err != nil {
		return "", fmt.Errorf("%w: lookup transfer: %s", errCashfreeTransient, c.sanitizeSecretText(err.Error()))
	}
	if status < 200 || status >= 300 {
		if isRetryableStatus(status) {
			return "", fmt.Errorf("%w: lookup transfer status=%d body=%s", errCashfreeTransient, status, abbreviateBody(raw))
		}
		return "", fmt.Errorf("lookup transfer status=%d body=%s", status, abbreviateBody(raw))
	}

	externalRef, parseErr := parseTransferOrder(raw)
	if parseErr != nil {
		return "", parseErr
	}
	c.logger.InfoContext(ctx, "cashfree transfer already exists, reusing order",
		"reference", reference,
		"external_ref", externalRef,
	)
	return externalRef, nil
}

func (c *Client) send(method, fullURL string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(fullURL)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.clientSecret)
	if len(body) > 0 {
		req.SetBodyRaw(body)
	}

	if err := c.httpClient.DoTimeout(req, resp, c.timeout); err != nil {
		return 0, nil, err
	}

	raw := resp.Body()
	if len(raw) > maxResponseBody {
		raw = raw[:maxResponseBody]
	}
	// The response buffer is pooled, copy before release.
	return resp.StatusCode(), append([]byte(nil), raw...), nil
}

func parseTransferOrder(raw []byte) (string, error) {
	var order transferResponse
	if err := sonic.Unmarshal(raw, &order); err != nil {
		return "", fmt.Errorf("decode transfer response: %w", err)
	}

	if isTerminalFailureStatus(order.Status) {
		return "", fmt.Errorf("payout rejected status=%s code=%s description=%s",
			order.Status, order.StatusCode, order.StatusDescription)
	}

	externalRef := strings.TrimSpace(order.CfTransferID)
	if externalRef == "" {
		externalRef = strings.TrimSpace(order.TransferID)
	}
	if externalRef == "" {
		return "", fmt.Errorf("transfer response carries no order id")
	}
	return externalRef, nil
}

func isTerminalFailureStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "FAILED", "REJECTED", "CANCELLED", "REVERSED":
		return true
	default:
		return false
	}
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == fasthttp.StatusRequestTimeout ||
		statusCode == fasthttp.StatusTooManyRequests ||
		statusCode >= fasthttp.StatusInternalServerError
}

func isCashfreeCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errCashfreeTransient)
}

func (c *Client) sanitizeSecretText(value string) string {
	value = strings.TrimSpace(value)
	if c.clientSecret != "" {
		value = strings.ReplaceAll(value, c.clientSecret, "REDACTED")
	}
	return value
}

func abbreviateBody(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 300 {
		return text[:300] + "..."
	}
	return text
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
