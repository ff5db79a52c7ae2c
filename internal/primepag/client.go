package primepag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/pix-panel/internal/config"
	"github.com/tbourn/pix-panel/internal/retry"
)

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("primepag client not configured")

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("primepag: http %d: %s", e.StatusCode, e.Body)
}

// ChargeRequest describes a new PIX charge.
type ChargeRequest struct {
	AmountCents       int64
	ExternalReference string // our idempotent id
	PayerName         string
	ExpiresIn         time.Duration
}

// Charge is the provider's view of a PIX charge.
type Charge struct {
	ReferenceCode     string `json:"reference_code"`
	ExternalReference string `json:"external_reference"`
	Content           string `json:"content"`      // copia-e-cola payload
	ImageBase64       string `json:"image_base64"` // QR code PNG
	ValueCents        int64  `json:"value_cents"`
	Status            string `json:"status"`
}

type chargeEnvelope struct {
	QRCode Charge `json:"qrcode"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Client calls the PrimePag HTTP API. The OAuth access token is cached until
// shortly before it expires.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	retry        retry.Config

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient builds a client from cfg. When httpClient is nil a client with
// cfg.Timeout is used.
func NewClient(cfg config.PrimePagConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.Retryable = isRetryable
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         httpClient,
		retry:        rc,
	}
}

// SetRetry overrides the retry policy.
func (c *Client) SetRetry(rc retry.Config) {
	if rc.Retryable == nil {
		rc.Retryable = isRetryable
	}
	c.retry = rc
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNotConfigured)
}

// CreateCharge issues a new PIX charge.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, span := otel.Tracer("primepag").Start(ctx, "CreateCharge",
		trace.WithAttributes(attribute.Int64("amount_cents", req.AmountCents)))
	defer span.End()

	body := map[string]any{
		"value_cents":        req.AmountCents,
		"external_reference": req.ExternalReference,
		"generator_name":     req.PayerName,
	}
	if req.ExpiresIn > 0 {
		body["expiration_time"] = strconv.FormatInt(int64(req.ExpiresIn/time.Second), 10)
	}

	var env chargeEnvelope
	err := retry.Do(ctx, c.retry, "primepag.create_charge", func(ctx context.Context) error {
		return c.call(ctx, http.MethodPost, "/v1/pix/qrcodes", body, &env)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create charge failed")
		return nil, err
	}
	if env.QRCode.ReferenceCode == "" {
		return nil, errors.New("primepag: response without reference_code")
	}
	if env.QRCode.ValueCents == 0 {
		env.QRCode.ValueCents = req.AmountCents
	}
	return &env.QRCode, nil
}

// GetCharge fetches the current state of a charge by reference code.
func (c *Client) GetCharge(ctx context.Context, referenceCode string) (*Charge, error) {
	ctx, span := otel.Tracer("primepag").Start(ctx, "GetCharge",
		trace.WithAttributes(attribute.String("reference_code", referenceCode)))
	defer span.End()

	var env chargeEnvelope
	err := retry.Do(ctx, c.retry, "primepag.get_charge", func(ctx context.Context) error {
		return c.call(ctx, http.MethodGet, "/v1/pix/qrcodes/"+referenceCode, nil, &env)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get charge failed")
		return nil, err
	}
	return &env.QRCode, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return retry.Permanent(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
		return &APIError{StatusCode: http.StatusServiceUnavailable, Body: "token rejected"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return retry.Permanent(fmt.Errorf("primepag: decode response: %w", err))
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.baseURL == "" || c.clientID == "" || c.clientSecret == "" {
		return "", retry.Permanent(ErrNotConfigured)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/generate_token",
		strings.NewReader(`{"grant_type":"client_credentials"}`))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 256)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", retry.Permanent(errors.New("primepag: invalid token response"))
	}
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.token = tr.AccessToken
	c.tokenExp = time.Now().Add(ttl - ttl/10)
	return c.token, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
