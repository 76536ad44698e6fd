package flutterwave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/pkg/config"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(
		config.FlutterwaveConfig{SecretKey: "FLWSECK_TEST-123"},
		WithBaseURL("http://flutterwave.test/v3"),
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientCreatePaymentRequest(t *testing.T) {
	const expectedURL = "http://flutterwave.test/v3/payments"
	respBody := `{"status":"success","data":{"link":"https://checkout.flutterwave.com/pay/abc"}}`

	var capturedURL, capturedMethod string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedMethod = req.Method
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["tx_ref"] != "vnd-tx-1" {
			t.Fatalf("unexpected tx_ref %q", payload["tx_ref"])
		}
		if payload["currency"] != "USD" {
			t.Fatalf("unexpected currency %q", payload["currency"])
		}
		customer, ok := payload["customer"].(map[string]any)
		if !ok || customer["email"] != "buyer@example.com" {
			t.Fatalf("unexpected customer %v", payload["customer"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	link, err := client.CreatePayment(context.Background(), PaymentRequest{
		TxRef:       "vnd-tx-1",
		Amount:      decimal.RequireFromString("150.00"),
		Currency:    "USD",
		RedirectURL: "https://shop.example/return",
		Customer:    Customer{Email: "buyer@example.com"},
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedMethod != http.MethodPost {
		t.Fatalf("unexpected method %q", capturedMethod)
	}
	if capturedHeaders.Get("Authorization") != "Bearer FLWSECK_TEST-123" {
		t.Fatalf("authorization header missing")
	}
	if link.Link != "https://checkout.flutterwave.com/pay/abc" {
		t.Fatalf("unexpected link %q", link.Link)
	}
}

func TestClientCreatePaymentValidation(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	cases := []PaymentRequest{
		{Amount: decimal.NewFromInt(10), Customer: Customer{Email: "buyer@example.com"}},
		{TxRef: "vnd-tx-1", Customer: Customer{Email: "buyer@example.com"}},
		{TxRef: "vnd-tx-1", Amount: decimal.NewFromInt(10)},
	}
	for _, req := range cases {
		_, err := client.CreatePayment(context.Background(), req)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestClientVerifyTransactionRequest(t *testing.T) {
	const expectedURL = "http://flutterwave.test/v3/transactions/987654/verify"
	respBody := `{"status":"success","data":{"id":987654,"tx_ref":"vnd-tx-1","status":"successful","amount":240.00,"app_fee":3.36,"currency":"USD"}}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	transaction, err := client.VerifyTransaction(context.Background(), "987654")
	if err != nil {
		t.Fatalf("verify transaction: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if !transaction.Succeeded() {
		t.Fatalf("expected succeeded transaction, got status %q", transaction.Status)
	}
	if transaction.TxRef != "vnd-tx-1" {
		t.Fatalf("unexpected tx_ref %q", transaction.TxRef)
	}
	if !transaction.Amount.Equal(decimal.RequireFromString("240")) {
		t.Fatalf("unexpected amount %s", transaction.Amount)
	}
	if !transaction.AppFee.Equal(decimal.RequireFromString("3.36")) {
		t.Fatalf("unexpected app fee %s", transaction.AppFee)
	}
}

func TestClientVerifyTransactionRejected(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"status":"error"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	_, err := client.VerifyTransaction(context.Background(), "987654")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientErrorStatusSurfacesBody(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader(`{"message":"invalid key"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	_, err := client.VerifyTransaction(context.Background(), "987654")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	if !client.VerifySignature("hash-123", "hash-123") {
		t.Fatal("expected matching hash to verify")
	}
	if client.VerifySignature("hash-123", "other") {
		t.Fatal("expected mismatched hash to fail")
	}
	if client.VerifySignature("", "hash-123") {
		t.Fatal("expected empty signature to fail")
	}
	if client.VerifySignature("hash-123", "") {
		t.Fatal("expected empty secret hash to fail")
	}
}

func TestNewClientRequiresSecretKey(t *testing.T) {
	if _, err := NewClient(config.FlutterwaveConfig{}); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
