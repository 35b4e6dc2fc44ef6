package paygate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeGateway struct {
	srv        *httptest.Server
	orders     map[string]GatewayOrder
	tokenCalls int
	failOrders bool
}

func newFakeGateway(t *testing.T) (*fakeGateway, *Client) {
	t.Helper()
	fg := &fakeGateway{orders: map[string]GatewayOrder{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fg.tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		if fg.failOrders {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/")
		order, ok := fg.orders[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(order)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	fg.srv = srv

	client := NewClient(Config{
		BaseURL:      srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      2 * time.Second,
	}, nil)
	return fg, client
}

func (fg *fakeGateway) addOrder(id, status, amount, currency string) {
	order := GatewayOrder{ID: id, Status: status}
	order.PurchaseUnits = append(order.PurchaseUnits, struct {
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	}{})
	order.PurchaseUnits[0].Amount.CurrencyCode = currency
	order.PurchaseUnits[0].Amount.Value = amount
	fg.orders[id] = order
}

func TestVerifyCompleted(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-1", "COMPLETED", "12.50", "USD")

	result, err := client.Verify(context.Background(), "TXN-1", 12.50, "USD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatalf("expected verified result, got reason %q", result.Reason)
	}
	if result.Amount != "12.50" || result.Currency != "USD" {
		t.Fatalf("unexpected echo of gateway record: %+v", result)
	}
}

func TestVerifyAmountMismatch(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-2", "COMPLETED", "10.00", "USD")

	result, err := client.Verify(context.Background(), "TXN-2", 12.50, "USD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Verified {
		t.Fatal("expected verification to fail on amount mismatch")
	}
	if !strings.Contains(result.Reason, "amount mismatch") {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestVerifyAmountWithinEpsilon(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-3", "COMPLETED", "12.51", "USD")

	result, err := client.Verify(context.Background(), "TXN-3", 12.50, "USD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatalf("one-cent rounding should pass, got reason %q", result.Reason)
	}
}

func TestVerifyCurrencyMismatch(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-4", "COMPLETED", "12.50", "EUR")

	result, err := client.Verify(context.Background(), "TXN-4", 12.50, "USD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Verified {
		t.Fatal("expected verification to fail on currency mismatch")
	}
}

func TestVerifyIncompleteStatus(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-5", "CREATED", "12.50", "USD")

	result, err := client.Verify(context.Background(), "TXN-5", 12.50, "USD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Verified {
		t.Fatal("expected verification to fail for incomplete transaction")
	}
	if !strings.Contains(result.Reason, "status") {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestVerifyGatewayDown(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.failOrders = true

	_, err := client.Verify(context.Background(), "TXN-6", 12.50, "USD")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestVerifyMissingTransaction(t *testing.T) {
	_, client := newFakeGateway(t)

	_, err := client.Verify(context.Background(), "TXN-MISSING", 12.50, "USD")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable for unknown txn, got %v", err)
	}
}

func TestTokenReuse(t *testing.T) {
	fg, client := newFakeGateway(t)
	fg.addOrder("TXN-7", "COMPLETED", "1.00", "USD")

	for i := 0; i < 3; i++ {
		if _, err := client.Verify(context.Background(), "TXN-7", 1.00, "USD"); err != nil {
			t.Fatalf("verify %d failed: %v", i, err)
		}
	}
	if fg.tokenCalls != 1 {
		t.Fatalf("expected a single credential exchange, got %d", fg.tokenCalls)
	}
}

func TestAmountsMatch(t *testing.T) {
	cases := []struct {
		expected string
		actual   string
		match    bool
	}{
		{"12.50", "12.50", true},
		{"12.50", "12.51", true},
		{"12.50", "12.49", true},
		{"12.50", "12.52", false},
		{"0.01", "0.02", true},
		{"100", "100.00", true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_vs_%s", tc.expected, tc.actual), func(t *testing.T) {
			expected, err := ParseAmount(tc.expected)
			if err != nil {
				t.Fatal(err)
			}
			actual, err := ParseAmount(tc.actual)
			if err != nil {
				t.Fatal(err)
			}
			if got := AmountsMatch(expected, actual); got != tc.match {
				t.Fatalf("AmountsMatch(%s, %s) = %v, want %v", tc.expected, tc.actual, got, tc.match)
			}
		})
	}
}

func TestParseAmountInvalid(t *testing.T) {
	if _, err := ParseAmount("twelve"); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}
