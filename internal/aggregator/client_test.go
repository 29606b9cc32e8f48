package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeUpstream serves the token endpoint and delegates everything else.
func fakeUpstream(t *testing.T, tokenCalls *int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/token/new/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["secret_id"] != "id" || body["secret_key"] != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"summary":"Authentication failed","status_code":401}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"tok-1","access_expires":86400}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("missing bearer token on %s", r.URL.Path)
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, SecretID: "id", SecretKey: "key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_GetTransactions(t *testing.T) {
	var tokenCalls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/accounts/acc-1/transactions/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date_from"); got != "2026-07-19" {
			t.Errorf("date_from = %q", got)
		}
		if got := r.URL.Query().Get("date_to"); got != "2026-10-17" {
			t.Errorf("date_to = %q", got)
		}
		_, _ = w.Write([]byte(`{"transactions":{
			"booked":[
				{"transactionId":"tx-1","bookingDate":"2026-10-01","transactionAmount":{"amount":"-12.50","currency":"EUR"},"creditorName":"Cafe"},
				{"transactionId":"tx-2","bookingDate":"2026-10-02","transactionAmount":{"amount":"100.00","currency":"EUR"},"debtorName":"Employer"}
			],
			"pending":[{"transactionAmount":{"amount":"-1.00","currency":"EUR"}}]
		}}`))
	})

	c := newTestClient(t, srv.URL)
	from := time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	txs, err := c.GetTransactions(context.Background(), "acc-1", from, to)
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 booked transactions, got %d", len(txs))
	}
	if txs[0].TransactionAmount.Amount != "-12.50" || txs[1].DebtorName != "Employer" {
		t.Errorf("unexpected transactions: %+v", txs)
	}
}

func TestClient_TokenIsCached(t *testing.T) {
	var tokenCalls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balances":[{"balanceAmount":{"amount":"10.00","currency":"EUR"},"balanceType":"expected"}]}`))
	})
	c := newTestClient(t, srv.URL)

	for i := 0; i < 3; i++ {
		if _, err := c.GetBalances(context.Background(), "acc-1"); err != nil {
			t.Fatalf("GetBalances failed: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("expected 1 token request, got %d", tokenCalls)
	}
}

func TestClient_TokenRenewedAfterExpiry(t *testing.T) {
	var tokenCalls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balances":[]}`))
	})

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c, err := NewClient(Config{BaseURL: srv.URL, SecretID: "id", SecretKey: "key", Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, _ = c.GetBalances(context.Background(), "acc-1")
	now = now.Add(25 * time.Hour)
	_, _ = c.GetBalances(context.Background(), "acc-1")

	if tokenCalls != 2 {
		t.Errorf("expected token renewal, got %d token requests", tokenCalls)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{"summary":"Rate limit exceeded","detail":"Try again in 3600 seconds","status_code":429}`, ErrRateLimited},
		{http.StatusForbidden, `{"summary":"EUA expired"}`, ErrConsentExpired},
		{http.StatusConflict, `{"summary":"Account suspended"}`, ErrConsentExpired},
		{http.StatusNotFound, `{"summary":"Not found"}`, ErrNotFound},
		{http.StatusBadGateway, `upstream down`, ErrUpstream},
		{http.StatusUnauthorized, `{"summary":"Invalid token"}`, ErrUnauthorized},
	}

	for _, tc := range cases {
		var tokenCalls int32
		srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		c := newTestClient(t, srv.URL)

		_, err := c.GetAccountDetails(context.Background(), "acc-1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
			continue
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Errorf("status %d: expected *APIError, got %T", tc.status, err)
			continue
		}
		if apiErr.StatusCode != tc.status {
			t.Errorf("status %d: StatusCode = %d", tc.status, apiErr.StatusCode)
		}
		if apiErr.Summary == "" {
			t.Errorf("status %d: empty summary", tc.status)
		}
	}
}

func TestClient_UnauthorizedDropsToken(t *testing.T) {
	var tokenCalls int32
	var calls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"summary":"Token expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"account":{"iban":"DE89370400440532013000","currency":"EUR"}}`))
	})
	c := newTestClient(t, srv.URL)

	if _, err := c.GetAccountDetails(context.Background(), "acc-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("client must not retry, got %d calls", calls)
	}

	details, err := c.GetAccountDetails(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if details.IBAN != "DE89370400440532013000" {
		t.Errorf("IBAN = %q", details.IBAN)
	}
	if tokenCalls != 2 {
		t.Errorf("expected a fresh token after 401, got %d token requests", tokenCalls)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.GetBalances(context.Background(), "acc-1")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if Classify(err) != "network" {
		t.Errorf("Classify = %q", Classify(err))
	}
}

func TestClient_Requisitions(t *testing.T) {
	var tokenCalls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/requisitions/":
			var in RequisitionInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				t.Errorf("decode requisition input: %v", err)
			}
			if in.InstitutionID != "SANDBOXFINANCE_SFIN0000" || in.Reference != "ref-1" {
				t.Errorf("unexpected input %+v", in)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"req-1","status":"CR","reference":"ref-1","link":"https://consent.example/req-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/requisitions/req-1/":
			_, _ = w.Write([]byte(`{"id":"req-1","status":"LN","accounts":["acc-1","acc-2"]}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	c := newTestClient(t, srv.URL)

	req, err := c.CreateRequisition(context.Background(), RequisitionInput{
		InstitutionID: "SANDBOXFINANCE_SFIN0000",
		RedirectURL:   "http://localhost/callback",
		Reference:     "ref-1",
	})
	if err != nil {
		t.Fatalf("CreateRequisition failed: %v", err)
	}
	if req.Link == "" {
		t.Error("expected consent link")
	}

	got, err := c.GetRequisition(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("GetRequisition failed: %v", err)
	}
	if len(got.Accounts) != 2 {
		t.Errorf("accounts = %v", got.Accounts)
	}
}

func TestClient_ListInstitutions(t *testing.T) {
	var tokenCalls int32
	srv := fakeUpstream(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("country") != "gb" {
			t.Errorf("country = %q", r.URL.Query().Get("country"))
		}
		_, _ = w.Write([]byte(`[{"id":"MONZO_MONZGB2L","name":"Monzo","countries":["GB"]}]`))
	})
	c := newTestClient(t, srv.URL)

	insts, err := c.ListInstitutions(context.Background(), "GB")
	if err != nil {
		t.Fatalf("ListInstitutions failed: %v", err)
	}
	if len(insts) != 1 || insts[0].Name != "Monzo" {
		t.Errorf("unexpected institutions %+v", insts)
	}
}
