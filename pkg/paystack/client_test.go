package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vendora-market/vendora-backend/pkg/config"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(
		config.PaystackConfig{SecretKey: "sk_test_123"},
		WithBaseURL("http://paystack.test"),
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientInitializeRequest(t *testing.T) {
	const expectedURL = "http://paystack.test/transaction/initialize"
	respBody := `{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref_123"}}`

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
		if payload["email"] != "buyer@example.com" {
			t.Fatalf("unexpected email %q", payload["email"])
		}
		if payload["amount"] != float64(15000) {
			t.Fatalf("unexpected amount %v", payload["amount"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	result, err := client.Initialize(context.Background(), InitializeRequest{
		Email:       "buyer@example.com",
		AmountMinor: 15000,
		Currency:    "USD",
		Reference:   "ref_123",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedMethod != http.MethodPost {
		t.Fatalf("unexpected method %q", capturedMethod)
	}
	if capturedHeaders.Get("Authorization") != "Bearer sk_test_123" {
		t.Fatalf("authorization header missing")
	}
	if result.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Fatalf("unexpected authorization url %q", result.AuthorizationURL)
	}
	if result.Reference != "ref_123" {
		t.Fatalf("unexpected reference %q", result.Reference)
	}
}

func TestClientInitializeValidation(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	_, err := client.Initialize(context.Background(), InitializeRequest{AmountMinor: 100})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = client.Initialize(context.Background(), InitializeRequest{Email: "buyer@example.com"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientVerifyRequest(t *testing.T) {
	const expectedURL = "http://paystack.test/transaction/verify/ref_123"
	respBody := `{"status":true,"data":{"reference":"ref_123","status":"success","amount":15000,"fees":225,"currency":"USD","paid_at":"2026-03-14T09:30:00Z"}}`

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
	transaction, err := client.Verify(context.Background(), "ref_123")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if !transaction.Succeeded() {
		t.Fatalf("expected succeeded transaction, got status %q", transaction.Status)
	}
	if transaction.Amount.String() != "150" {
		t.Fatalf("unexpected amount %s", transaction.Amount)
	}
	if transaction.Fees.String() != "2.25" {
		t.Fatalf("unexpected fees %s", transaction.Fees)
	}
	if !transaction.PaidAt.Equal(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected paid at %s", transaction.PaidAt)
	}
}

func TestClientVerifyRejected(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"status":false}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	_, err := client.Verify(context.Background(), "ref_123")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientErrorStatusSurfacesBody(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader(`{"message":"Invalid key"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)
	_, err := client.Verify(context.Background(), "ref_123")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	body := []byte(`{"event":"charge.success"}`)
	mac := hmac.New(sha512.New, []byte("sk_test_123"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	if !client.VerifySignature(body, signature) {
		t.Fatal("expected valid signature to verify")
	}
	if client.VerifySignature(body, "deadbeef") {
		t.Fatal("expected tampered signature to fail")
	}
	if client.VerifySignature(body, "") {
		t.Fatal("expected empty signature to fail")
	}
}

func TestNewClientRequiresSecretKey(t *testing.T) {
	if _, err := NewClient(config.PaystackConfig{}); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
