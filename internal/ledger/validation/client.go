package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"custodia/internal/ledger/models"
	"custodia/internal/ledger/ports"
	id "custodia/pkg/domain"
)

const engineCallTimeout = 5 * time.Second

// HTTPEngine is an ExternalEngine backed by a remote compliance service
// speaking JSON over HTTP. The engine decides; the caller's circuit breaker
// decides whether to trust it.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// DialHTTPEngine validates the endpoint and returns a client for it. No
// connection is made here; engines are probed on first use.
func DialHTTPEngine(endpoint string) (ports.ExternalEngine, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid engine endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("engine endpoint must be an absolute http(s) URL, got %q", endpoint)
	}
	return &HTTPEngine{
		baseURL: u.String(),
		client:  &http.Client{Timeout: engineCallTimeout},
	}, nil
}

type detectRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type detectResponse struct {
	Code uint8 `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (e *HTTPEngine) DetectTransferRestriction(ctx context.Context, from, to id.Address, amount id.Amount) (models.RestrictionCode, error) {
	body, err := json.Marshal(detectRequest{
		From:   from.String(),
		To:     to.String(),
		Amount: amount.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out detectResponse
	if err := e.do(req, &out); err != nil {
		return 0, err
	}
	return models.RestrictionCode(out.Code), nil
}

func (e *HTTPEngine) MessageForRestrictionCode(ctx context.Context, code models.RestrictionCode) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/messages/%d", e.baseURL, uint8(code)), nil)
	if err != nil {
		return "", fmt.Errorf("create message request: %w", err)
	}

	var out messageResponse
	if err := e.do(req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (e *HTTPEngine) do(req *http.Request, out any) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
