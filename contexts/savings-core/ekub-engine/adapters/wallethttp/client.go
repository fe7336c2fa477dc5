// Package wallethttp calls the external wallet service over HTTP. The wallet
// owns balances; the engine only requests idempotent debits and credits keyed
// by reference.
package wallethttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	MemberID  string  `json:"member_id"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

type transferError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) Debit(ctx context.Context, memberID string, amount float64, reference string) error {
	return c.post(ctx, "/internal/wallet/v1/debits", transferRequest{
		MemberID:  memberID,
		Amount:    amount,
		Reference: reference,
	})
}

func (c *Client) Credit(ctx context.Context, memberID string, amount float64, reference string) error {
	return c.post(ctx, "/internal/wallet/v1/credits", transferRequest{
		MemberID:  memberID,
		Amount:    amount,
		Reference: reference,
	})
}

func (c *Client) post(ctx context.Context, path string, payload transferRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domainerrors.ErrWalletUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domainerrors.ErrWalletUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.Reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrWalletUnavailable, err)
	}
	defer resp.Body.Close()

	// 200 and 409 both mean the transfer is applied: 409 is the wallet
	// replaying an already-honored reference.
	if resp.StatusCode == http.StatusOK ||
		resp.StatusCode == http.StatusCreated ||
		resp.StatusCode == http.StatusConflict {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusPaymentRequired {
		var walletErr transferError
		if err := json.Unmarshal(detail, &walletErr); err == nil &&
			strings.EqualFold(walletErr.Code, "insufficient_funds") {
			return domainerrors.ErrInsufficientFunds
		}
		return domainerrors.ErrInsufficientFunds
	}
	return fmt.Errorf("%w: status %d: %s",
		domainerrors.ErrWalletUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
}
