package piprapay

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

	"github.com/promptstudio-ai/promptstudio-backend/pkg/config"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var (
	errAPIKeyRequired = errors.New("piprapay api key is required")
	errLoggerRequired = errors.New("piprapay logger is required")
)

// Client exposes PipraPay primitives with centralized auth, logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	webhookAPIKey string
	logger        *logger.Logger
}

// Option customizes the client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient initializes the PipraPay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PipraPayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("piprapay base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing piprapay base url: %w", err)
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		webhookAPIKey: strings.TrimSpace(cfg.WebhookAPIKey),
		logger:        logg,
	}
	for _, opt := range opts {
		opt(c)
	}

	logg.Info(ctx, "piprapay client initialized")
	return c, nil
}

// WebhookSecret returns the configured HMAC signing secret, if any.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// WebhookAPIKey returns the key expected on inbound webhook requests.
func (c *Client) WebhookAPIKey() string {
	if c == nil {
		return ""
	}
	return c.webhookAPIKey
}

// CreateCharge starts a hosted checkout session for the given params.
func (c *Client) CreateCharge(ctx context.Context, params ChargeCreateParams) (*Charge, error) {
	c.log(ctx, "request", "create_charge", map[string]any{
		"amount":   params.Amount.String(),
		"currency": params.Currency,
	})

	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/payments", params, &charge, "create charge"); err != nil {
		c.log(ctx, "error", "create_charge", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_charge", map[string]any{
		"payment_id": charge.PaymentID,
		"status":     charge.Status,
	})
	return &charge, nil
}

// VerifyPayment asks the gateway to confirm the payment identified by id.
func (c *Client) VerifyPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.log(ctx, "request", "verify_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	path := fmt.Sprintf("/payments/%s/verify", url.PathEscape(paymentID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payment, "verify payment"); err != nil {
		c.log(ctx, "error", "verify_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "verify_payment", map[string]any{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
	})
	return &payment, nil
}

// GetPayment fetches the gateway record for the payment identified by id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	path := fmt.Sprintf("/payments/%s", url.PathEscape(paymentID))
	if err := c.do(ctx, http.MethodGet, path, nil, &payment, "get payment"); err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
	})
	return &payment, nil
}

// CancelPayment cancels a pending payment at the gateway.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.log(ctx, "request", "cancel_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	path := fmt.Sprintf("/payments/%s/cancel", url.PathEscape(paymentID))
	if err := c.do(ctx, http.MethodPost, path, nil, &payment, "cancel payment"); err != nil {
		c.log(ctx, "error", "cancel_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "cancel_payment", map[string]any{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
	})
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, op string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("piprapay %s failed", op))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("piprapay %s failed", op))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("piprapay %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("piprapay %s failed", op))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapAPIError(resp.StatusCode, raw, op)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("piprapay %s returned malformed body", op))
	}
	return nil
}

func (c *Client) mapAPIError(status int, raw []byte, op string) error {
	var detail apiError
	_ = json.Unmarshal(raw, &detail)

	msg := detail.text()
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := domainCodeForStatus(status)
	return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", status, msg), fmt.Sprintf("piprapay %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("piprapay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("piprapay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"key", "secret", "token", "email", "mobile", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
