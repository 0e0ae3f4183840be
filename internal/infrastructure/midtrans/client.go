package midtrans

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
	"time"

	"github.com/shopspring/decimal"
)

const (
	SandboxBaseURL    = "https://api.sandbox.midtrans.com"
	ProductionBaseURL = "https://api.midtrans.com"
	SandboxSnapURL    = "https://app.sandbox.midtrans.com/snap/v1/transactions"
	ProductionSnapURL = "https://app.midtrans.com/snap/v1/transactions"

	DefaultTimeout = 10 * time.Second
)

var ErrTransactionNotFound = errors.New("midtrans transaction not found")

type Client struct {
	ServerKey string
	BaseURL   string
	SnapURL   string
	HTTP      *http.Client
}

type Config struct {
	ServerKey  string
	Production bool
	BaseURL    string
	SnapURL    string
	Timeout    time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, fmt.Errorf("midtrans server key required")
	}
	base, snap := SandboxBaseURL, SandboxSnapURL
	if cfg.Production {
		base, snap = ProductionBaseURL, ProductionSnapURL
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		base = cfg.BaseURL
	}
	if strings.TrimSpace(cfg.SnapURL) != "" {
		snap = cfg.SnapURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		ServerKey: cfg.ServerKey,
		BaseURL:   strings.TrimRight(base, "/"),
		SnapURL:   snap,
		HTTP:      &http.Client{Timeout: timeout},
	}, nil
}

type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// TransactionStatus is the subset of the status / notification body the backend reads.
// Webhook notifications carry the same fields plus signature_key.
type TransactionStatus struct {
	OrderID           string     `json:"order_id"`
	TransactionID     string     `json:"transaction_id"`
	TransactionStatus string     `json:"transaction_status"`
	TransactionTime   string     `json:"transaction_time"`
	FraudStatus       string     `json:"fraud_status"`
	PaymentType       string     `json:"payment_type"`
	GrossAmount       string     `json:"gross_amount"`
	StatusCode        string     `json:"status_code"`
	StatusMessage     string     `json:"status_message"`
	SignatureKey      string     `json:"signature_key"`
	MaskedCard        string     `json:"masked_card"`
	PermataVANumber   string     `json:"permata_va_number"`
	VANumbers         []VANumber `json:"va_numbers"`
}

// VA returns the first virtual account number present in the payload.
func (s TransactionStatus) VA() string {
	if s.PermataVANumber != "" {
		return s.PermataVANumber
	}
	for _, v := range s.VANumbers {
		if v.VANumber != "" {
			return v.VANumber
		}
	}
	return ""
}

// CheckGrossAmount reports whether gross_amount ("150000.00") equals total
// rupiah exactly. A missing or unparsable amount is a mismatch.
func (s TransactionStatus) CheckGrossAmount(total int64) error {
	raw := strings.TrimSpace(s.GrossAmount)
	if raw == "" {
		return errors.New("gross_amount missing")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("gross_amount %q: %w", raw, err)
	}
	if !d.Equal(decimal.NewFromInt(total)) {
		return fmt.Errorf("gross_amount %s does not match order total %d", d.StringFixed(2), total)
	}
	return nil
}

// Status queries GET /v2/{order_id}/status.
func (c *Client) Status(ctx context.Context, gatewayOrderID string) (TransactionStatus, error) {
	var out TransactionStatus
	if strings.TrimSpace(gatewayOrderID) == "" {
		return out, fmt.Errorf("order id required")
	}
	u := c.BaseURL + "/v2/" + url.PathEscape(gatewayOrderID) + "/status"
	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("midtrans status decode: %w", err)
	}
	// the core api reports unknown transactions with HTTP 200 and status_code 404
	if out.StatusCode == "404" {
		return out, ErrTransactionNotFound
	}
	return out, nil
}

type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
}

type SnapItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type SnapExpiry struct {
	StartTime string `json:"start_time"`
	Unit      string `json:"unit"`
	Duration  int    `json:"duration"`
}

type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []SnapItem         `json:"item_details"`
	CustomerDetails    CustomerDetails    `json:"customer_details"`
	Expiry             *SnapExpiry        `json:"expiry,omitempty"`
}

type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSnap opens a hosted checkout session.
func (c *Client) CreateSnap(ctx context.Context, req SnapRequest) (SnapResponse, error) {
	var out SnapResponse
	var sum int64
	for _, it := range req.ItemDetails {
		sum += it.Price * int64(it.Quantity)
	}
	if sum != req.TransactionDetails.GrossAmount {
		return out, fmt.Errorf("item_details sum %d != gross_amount %d", sum, req.TransactionDetails.GrossAmount)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	body, err := c.do(ctx, http.MethodPost, c.SnapURL, raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("midtrans snap decode: %w", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return out, fmt.Errorf("missing snap token")
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.ServerKey, "")
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("midtrans error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
