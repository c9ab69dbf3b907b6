package network

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitfsorg/sponsor-go/wallet"
)

// Request headers understood by the gateway.
const (
	HeaderPayerAddress = "X-Payer-Address"
	HeaderPayerPubKey  = "X-Payer-Pubkey"
	HeaderSignature    = "X-Signature"
	HeaderTags         = "X-Tags"
)

const maxErrorBody = 1024

// GatewayClient is an HTTP client for a bundling upload gateway.
// Each data item is signed by the paying wallet; the gateway debits that
// wallet's credit balance and returns the item id.
type GatewayClient struct {
	url    string
	token  string
	client *http.Client
}

var _ Publisher = (*GatewayClient)(nil)

// NewGatewayClient creates a gateway client with the given configuration.
// The client maintains a connection pool for efficient reuse.
func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &GatewayClient{
		url:   strings.TrimRight(cfg.URL, "/"),
		token: cfg.Token,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Publish uploads data signed by payer.
//
// The signature is DER ECDSA over SHA256(data). Tags travel as base64url
// JSON in the X-Tags header.
func (c *GatewayClient) Publish(ctx context.Context, payer *wallet.Key, data []byte, tags []Tag) (*Receipt, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	digest := sha256.Sum256(data)
	sig, err := payer.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("network: marshal tags: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/tx", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderPayerAddress, payer.Address)
	req.Header.Set(HeaderPayerPubKey, payer.PublicKeyHex())
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
	req.Header.Set(HeaderTags, base64.RawURLEncoding.EncodeToString(tagJSON))

	var receipt Receipt
	if err := c.do(req, &receipt); err != nil {
		return nil, err
	}
	if receipt.TxID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidResponse)
	}
	return &receipt, nil
}

// GetBalance queries the credit balance of address.
func (c *GatewayClient) GetBalance(ctx context.Context, address string) (*Balance, error) {
	u := c.url + "/v1/balance?" + url.Values{"address": {address}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("network: create request: %w", err)
	}

	var bal Balance
	if err := c.do(req, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// do sends req and decodes a JSON response into result. Non-2xx statuses
// are mapped onto the package sentinels.
func (c *GatewayClient) do(req *http.Request, result interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidResponse)
		}
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	return nil
}

func statusError(code int, body string) error {
	var sentinel error
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		sentinel = ErrAuthFailed
	case code == http.StatusPaymentRequired:
		sentinel = ErrInsufficientFunds
	case code >= 400 && code < 500:
		sentinel = ErrPublishRejected
	default:
		sentinel = ErrConnectionFailed
	}
	return fmt.Errorf("%w: HTTP %d: %s", sentinel, code, body)
}
