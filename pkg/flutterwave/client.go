package flutterwave

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/pkg/config"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.flutterwave.com/v3"
	requestBodyReadLimit int64 = 1024
)

var errSecretKeyRequired = errors.New("flutterwave secret key is required")

// Client wraps the Flutterwave payment APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Flutterwave base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Flutterwave client from config.
func NewClient(cfg config.FlutterwaveConfig, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(cfg.SecretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// PaymentRequest describes the payload sent to the hosted payment API.
type PaymentRequest struct {
	TxRef       string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirect_url"`
	Customer    Customer        `json:"customer"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// Customer identifies the paying buyer.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// PaymentLink is the hosted payment handle returned by Flutterwave.
type PaymentLink struct {
	Link string
}

// Transaction represents the normalized verify response.
type Transaction struct {
	ID       int64
	TxRef    string
	Status   string
	Amount   decimal.Decimal
	AppFee   decimal.Decimal
	Currency string
}

// Succeeded reports whether the transaction settled successfully.
func (t Transaction) Succeeded() bool {
	return strings.EqualFold(t.Status, "successful")
}

// CreatePayment starts a hosted payment and returns the redirect link.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave client not configured")
	}
	if strings.TrimSpace(req.TxRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Customer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}

	var apiResp struct {
		Status string `json:"status"`
		Data   struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "payments", req, &apiResp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(apiResp.Status, "success") {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave payment rejected")
	}

	return &PaymentLink{Link: apiResp.Data.Link}, nil
}

// VerifyTransaction fetches the settled state of a transaction by its Flutterwave ID.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave client not configured")
	}
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	var apiResp struct {
		Status string `json:"status"`
		Data   struct {
			ID       int64           `json:"id"`
			TxRef    string          `json:"tx_ref"`
			Status   string          `json:"status"`
			Amount   decimal.Decimal `json:"amount"`
			AppFee   decimal.Decimal `json:"app_fee"`
			Currency string          `json:"currency"`
		} `json:"data"`
	}
	path := fmt.Sprintf("transactions/%s/verify", url.PathEscape(trimmed))
	if err := c.do(ctx, http.MethodGet, path, nil, &apiResp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(apiResp.Status, "success") {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "flutterwave verify rejected")
	}

	return &Transaction{
		ID:       apiResp.Data.ID,
		TxRef:    apiResp.Data.TxRef,
		Status:   apiResp.Data.Status,
		Amount:   apiResp.Data.Amount,
		AppFee:   apiResp.Data.AppFee,
		Currency: apiResp.Data.Currency,
	}, nil
}

// VerifySignature checks the verif-hash header against the configured secret hash.
func (c *Client) VerifySignature(signature, secretHash string) bool {
	if c == nil || strings.TrimSpace(signature) == "" || strings.TrimSpace(secretHash) == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(secretHash)) == 1
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal flutterwave request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build flutterwave request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute flutterwave request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "flutterwave request failed")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode flutterwave response")
		}
	}
	return nil
}
