package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	defaultSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	defaultLiveBaseURL    = "https://api-m.paypal.com"
)

// Credentials are the per-user PayPal REST credentials. Every call on
// the client is made on behalf of a specific connected account, so the
// credentials travel with the request instead of living on the client.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Mode         model.PayPalMode
}

func (c Credentials) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if !c.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

type Config struct {
	// SandboxBaseURL and LiveBaseURL override the PayPal API hosts.
	// Leave empty for the real endpoints; tests and the simulator
	// point both at a local server.
	SandboxBaseURL string
	LiveBaseURL    string
	Timeout        time.Duration
	MaxConns       int
}

type Client struct {
	config *Config
	client *fasthttp.Client
}

func NewClient(config *Config) *Client {
	if config.SandboxBaseURL == "" {
		config.SandboxBaseURL = defaultSandboxBaseURL
	}
	if config.LiveBaseURL == "" {
		config.LiveBaseURL = defaultLiveBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 64
	}

	return &Client{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

func (c *Client) baseURL(mode model.PayPalMode) string {
	if mode == model.PayPalModeLive {
		return c.config.LiveBaseURL
	}
	return c.config.SandboxBaseURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetAccessToken exchanges the client credentials for a bearer token.
// It is also used as the connection check when a user links an account.
func (c *Client) GetAccessToken(ctx context.Context, creds Credentials) (string, error) {
	if err := creds.validate(); err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL(creds.Mode) + "/v1/oauth2/token")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.SetBodyString(url.Values{"grant_type": {"client_credentials"}}.Encode())

	if err := c.do(ctx, req, resp); err != nil {
		return "", err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode(), Body: "empty access token"}
	}

	return token.AccessToken, nil
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type PayoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        Amount `json:"amount"`
	Receiver      string `json:"receiver"`
	SenderItemID  string `json:"sender_item_id"`
	Note          string `json:"note,omitempty"`
}

type SenderBatchHeader struct {
	SenderBatchID string `json:"sender_batch_id"`
	EmailSubject  string `json:"email_subject,omitempty"`
	EmailMessage  string `json:"email_message,omitempty"`
}

type PayoutRequest struct {
	SenderBatchHeader SenderBatchHeader `json:"sender_batch_header"`
	Items             []PayoutItem      `json:"items"`
}

type BatchHeader struct {
	PayoutBatchID     string            `json:"payout_batch_id"`
	BatchStatus       string            `json:"batch_status"`
	SenderBatchHeader SenderBatchHeader `json:"sender_batch_header"`
}

type PayoutItemDetail struct {
	PayoutItemID      string     `json:"payout_item_id"`
	TransactionStatus string     `json:"transaction_status"`
	PayoutItem        PayoutItem `json:"payout_item"`
	Errors            *APIError  `json:"errors,omitempty"`
}

type PayoutBatchResponse struct {
	BatchHeader BatchHeader        `json:"batch_header"`
	Items       []PayoutItemDetail `json:"items,omitempty"`
}

type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CreatePayout submits a payout batch. The returned payout_batch_id is
// PayPal's identifier for the batch and replaces the locally generated
// sender_batch_id on the staged transactions.
func (c *Client) CreatePayout(ctx context.Context, creds Credentials, payout *PayoutRequest) (*PayoutBatchResponse, error) {
	token, err := c.GetAccessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payout)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout request: %w", err)
	}

	respBody, statusCode, err := c.doJSON(ctx, creds.Mode, token, fasthttp.MethodPost, "/v1/payments/payouts", body)
	if err != nil {
		return nil, err
	}

	if statusCode != fasthttp.StatusCreated && statusCode != fasthttp.StatusOK {
		return nil, payoutError(statusCode, respBody)
	}

	var batch PayoutBatchResponse
	if err := json.Unmarshal(respBody, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout response: %w", err)
	}
	if batch.BatchHeader.PayoutBatchID == "" {
		return nil, &PayoutError{StatusCode: statusCode, Body: "missing payout_batch_id"}
	}

	logger.Info("payout batch created",
		"payout_batch_id", batch.BatchHeader.PayoutBatchID,
		"batch_status", batch.BatchHeader.BatchStatus,
		"items", len(payout.Items))

	return &batch, nil
}

// GetPayoutStatus fetches the current state of a payout batch and its
// items by PayPal batch id.
func (c *Client) GetPayoutStatus(ctx context.Context, creds Credentials, payoutBatchID string) (*PayoutBatchResponse, error) {
	token, err := c.GetAccessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	path := "/v1/payments/payouts/" + url.PathEscape(payoutBatchID)
	respBody, statusCode, err := c.doJSON(ctx, creds.Mode, token, fasthttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != fasthttp.StatusOK {
		return nil, payoutError(statusCode, respBody)
	}

	var batch PayoutBatchResponse
	if err := json.Unmarshal(respBody, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout status: %w", err)
	}

	return &batch, nil
}

// WebhookSignature carries the signature headers PayPal sends with each
// webhook delivery.
type WebhookSignature struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

type verifyWebhookRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature asks PayPal to verify a webhook delivery. It
// returns true only when PayPal answers SUCCESS; any transport error is
// returned as-is so the caller can decide between reject and retry.
func (c *Client) VerifyWebhookSignature(ctx context.Context, creds Credentials, webhookID string, sig WebhookSignature, event []byte) (bool, error) {
	token, err := c.GetAccessToken(ctx, creds)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(verifyWebhookRequest{
		AuthAlgo:         sig.AuthAlgo,
		CertURL:          sig.CertURL,
		TransmissionID:   sig.TransmissionID,
		TransmissionSig:  sig.TransmissionSig,
		TransmissionTime: sig.TransmissionTime,
		WebhookID:        webhookID,
		WebhookEvent:     json.RawMessage(event),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	respBody, statusCode, err := c.doJSON(ctx, creds.Mode, token, fasthttp.MethodPost, "/v1/notifications/verify-webhook-signature", body)
	if err != nil {
		return false, err
	}

	if statusCode != fasthttp.StatusOK {
		return false, payoutError(statusCode, respBody)
	}

	var verification verifyWebhookResponse
	if err := json.Unmarshal(respBody, &verification); err != nil {
		return false, fmt.Errorf("failed to unmarshal verification response: %w", err)
	}

	return verification.VerificationStatus == "SUCCESS", nil
}

// doJSON performs an authenticated JSON request and returns the
// response body and status code. API-level errors are left to callers.
func (c *Client) doJSON(ctx context.Context, mode model.PayPalMode, token, method, path string, body []byte) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL(mode) + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if body != nil {
		req.SetBody(body)
	}

	if err := c.do(ctx, req, resp); err != nil {
		return nil, 0, err
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, resp.StatusCode(), nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return nil
}

func payoutError(statusCode int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Name != "" {
		return &PayoutError{StatusCode: statusCode, Name: apiErr.Name, Message: apiErr.Message, Body: string(body)}
	}
	return &PayoutError{StatusCode: statusCode, Body: string(body)}
}
