package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20

	// tokenExpiryMargin renews the access token this long before it expires.
	tokenExpiryMargin = 30 * time.Second

	DateLayout = "2006-01-02"
)

// Config is passed to NewClient explicitly; nothing is read from the
// environment here.
type Config struct {
	BaseURL   string
	SecretID  string
	SecretKey string

	// Timeout applies when HTTPClient is nil. Defaults to 30s.
	Timeout    time.Duration
	HTTPClient *http.Client

	// Now is used for token expiry bookkeeping. Defaults to time.Now.
	Now func() time.Time
}

// Client talks to the aggregator's HTTP API. It never retries and never
// throttles; callers own pacing and retry policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretID   string
	// secretKey is sensitive and never logged
	secretKey string
	now       func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" || config.SecretID == "" || config.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("aggregator: invalid base url: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		secretID:   config.SecretID,
		secretKey:  config.SecretKey,
		now:        now,
	}, nil
}

func (c *Client) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	path := "/api/v2/institutions/?" + url.Values{"country": {strings.ToLower(country)}}.Encode()
	out, err := doJSON[[]Institution](ctx, c, "list institutions", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (c *Client) CreateRequisition(ctx context.Context, input RequisitionInput) (*Requisition, error) {
	return doJSON[Requisition](ctx, c, "create requisition", http.MethodPost, "/api/v2/requisitions/", input)
}

func (c *Client) GetRequisition(ctx context.Context, requisitionID string) (*Requisition, error) {
	path := fmt.Sprintf("/api/v2/requisitions/%s/", url.PathEscape(requisitionID))
	return doJSON[Requisition](ctx, c, "get requisition", http.MethodGet, path, nil)
}

func (c *Client) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error) {
	path := fmt.Sprintf("/api/v2/accounts/%s/details/", url.PathEscape(accountID))
	out, err := doJSON[accountDetailsResponse](ctx, c, "account details", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return &out.Account, nil
}

func (c *Client) GetBalances(ctx context.Context, accountID string) ([]Balance, error) {
	path := fmt.Sprintf("/api/v2/accounts/%s/balances/", url.PathEscape(accountID))
	out, err := doJSON[balancesResponse](ctx, c, "account balances", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return out.Balances, nil
}

// GetTransactions returns booked transactions between from and to
// inclusive. Pending transactions are dropped: they carry no stable id.
func (c *Client) GetTransactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("date_from", from.Format(DateLayout))
	}
	if !to.IsZero() {
		params.Set("date_to", to.Format(DateLayout))
	}
	path := fmt.Sprintf("/api/v2/accounts/%s/transactions/", url.PathEscape(accountID))
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	out, err := doJSON[transactionsResponse](ctx, c, "account transactions", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return out.Transactions.Booked, nil
}

// token returns a cached access token, requesting a new one when missing or
// about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	body := map[string]string{"secret_id": c.secretID, "secret_key": c.secretKey}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v2/token/new/", body)
	if err != nil {
		return "", err
	}

	var tok tokenResponse
	if err := c.do(req, "obtain token", &tok); err != nil {
		return "", err
	}
	if tok.Access == "" {
		return "", &APIError{Op: "obtain token", StatusCode: http.StatusOK, Summary: "empty access token", Kind: ErrUnauthorized}
	}

	c.accessToken = tok.Access
	c.tokenExpiry = c.now().Add(time.Duration(tok.AccessExpires)*time.Second - tokenExpiryMargin)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func doJSON[T any](ctx context.Context, c *Client, op, method, path string, body any) (*T, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out T
	if err := c.do(req, op, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == ErrUnauthorized {
			// force a fresh token on the next call; this call is not retried
			c.invalidateToken()
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("aggregator: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("aggregator: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Detail: err.Error(), Kind: ErrNetwork}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Detail: err.Error(), Kind: ErrNetwork}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Summary: "invalid response body", Detail: err.Error(), Kind: ErrUpstream}
	}
	return nil
}

func parseError(op string, status int, body []byte) error {
	apiErr := &APIError{Op: op, StatusCode: status, Kind: kindForStatus(status)}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Summary != "" || errResp.Detail != "") {
		apiErr.Summary = errResp.Summary
		apiErr.Detail = errResp.Detail
	} else {
		apiErr.Summary = strings.TrimSpace(string(body))
		if apiErr.Summary == "" {
			apiErr.Summary = http.StatusText(status)
		}
	}
	return apiErr
}
