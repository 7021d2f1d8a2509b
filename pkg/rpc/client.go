package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/wallet"
)

// Client calls a running server. Requests that need a signature are signed
// with Key.
type Client struct {
	BaseURL string
	Key     ed25519.PrivateKey
	HTTP    *http.Client
}

func NewClient(baseURL string, key ed25519.PrivateKey) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Key:     key,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetValidBlockhashes returns valid_hash || announced_hash.
func (c *Client) GetValidBlockhashes(ctx context.Context) ([2 * types.HashSize]byte, error) {
	var out [2 * types.HashSize]byte
	var resp BlockhashesResponse
	if err := c.do(ctx, http.MethodGet, "/blockhashes", nil, &resp); err != nil {
		return out, err
	}
	raw, err := hex.DecodeString(resp.Raw)
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("malformed blockhashes %q", resp.Raw)
	}
	copy(out[:], raw)
	return out, nil
}

// SubmitProof signs and submits a mined payload.
func (c *Client) SubmitProof(ctx context.Context, pk types.Pubkey, payload []byte) error {
	req := ProofRequest{
		Wallet:    pk.String(),
		Payload:   hex.EncodeToString(payload),
		Signature: hex.EncodeToString(wallet.Sign(c.Key, payload)),
	}
	return c.do(ctx, http.MethodPost, "/proofs", req, nil)
}

// DailyDistribution triggers the daily distribution.
func (c *Client) DailyDistribution(ctx context.Context) (*DistributionResponse, error) {
	var resp DistributionResponse
	if err := c.do(ctx, http.MethodPost, "/distribution", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transfer signs and submits a transfer from the client's wallet.
func (c *Client) Transfer(ctx context.Context, to types.Pubkey, amount types.Amount) error {
	from := wallet.Pubkey(c.Key)
	req := TransferRequest{
		From:      from.String(),
		To:        to.String(),
		Amount:    amount,
		Signature: hex.EncodeToString(wallet.Sign(c.Key, wallet.TransferMessage(from, to, amount))),
	}
	return c.do(ctx, http.MethodPost, "/transfers", req, nil)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc: %d %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
