package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	id "persona-gateway/pkg/domain"
	"persona-gateway/pkg/platform/circuit"
	"persona-gateway/pkg/platform/sentinel"
)

// ClientConfig configures the chain-backed ledger.
type ClientConfig struct {
	// LCDURL is the chain's REST endpoint used for balance queries.
	LCDURL string
	// SignerURL is the transaction gateway that signs and broadcasts bank
	// transfers on behalf of gateway-managed accounts.
	SignerURL string
	// HTTPClient overrides the default retrying client (tests).
	HTTPClient *http.Client
}

// Client implements Ledger against the transaction gateway and the chain's
// REST API.
type Client struct {
	lcdURL    string
	signerURL string
	client    *http.Client

	// balances guards the LCD balance endpoint. Balance is decoration on a
	// persona read, so when the endpoint keeps failing the client fails fast
	// instead of holding every read for the full retry budget. Transfers are
	// never gated; a charge must always reach the chain or fail honestly.
	balances *circuit.Breaker
}

// NewClient builds the chain-backed ledger. Balance queries retry with
// backoff; transfers do not retry past the first broadcast attempt: a
// transfer that may have reached the chain must never be re-issued blindly.
func NewClient(cfg ClientConfig) *Client {
	client := cfg.HTTPClient
	if client == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 2
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.HTTPClient.Timeout = 20 * time.Second
		rc.Logger = nil
		client = rc.StandardClient()
	}
	return &Client{
		lcdURL:    strings.TrimRight(cfg.LCDURL, "/"),
		signerURL: strings.TrimRight(cfg.SignerURL, "/"),
		client:    client,
		balances:  circuit.New("lcd-balances"),
	}
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

func (c *Client) Transfer(ctx context.Context, from, to id.AccountID, amount int64, denom string) (TxResult, error) {
	if amount <= 0 {
		return TxResult{}, fmt.Errorf("transfer amount must be positive, got %d", amount)
	}
	payload, err := json.Marshal(transferRequest{
		From:   from.String(),
		To:     to.String(),
		Amount: strconv.FormatInt(amount, 10),
		Denom:  denom,
	})
	if err != nil {
		return TxResult{}, fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.signerURL+"/v1/tx/transfer", bytes.NewReader(payload))
	if err != nil {
		return TxResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return TxResult{}, fmt.Errorf("%w: ledger transfer: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TxResult{}, fmt.Errorf("read transfer response: %w", err)
	}
	if resp.StatusCode >= 300 {
		// The gateway relays broadcast rejections with a body; keep the raw
		// log so the coordinator can classify insufficient funds.
		return TxResult{}, fmt.Errorf("ledger transfer failed with HTTP %d: %s",
			resp.StatusCode, gjson.GetBytes(body, "raw_log").String())
	}

	return TxResult{
		Code:   uint32(gjson.GetBytes(body, "code").Uint()),
		RawLog: gjson.GetBytes(body, "raw_log").String(),
		TxHash: gjson.GetBytes(body, "txhash").String(),
	}, nil
}

func (c *Client) Balance(ctx context.Context, account id.AccountID, denom string) (int64, error) {
	if !c.balances.Allow() {
		return 0, fmt.Errorf("%w: balance endpoint circuit open", sentinel.ErrUnavailable)
	}

	url := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", c.lcdURL, account, denom)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.balances.RecordFailure()
		return 0, fmt.Errorf("%w: balance query: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.balances.RecordFailure()
		return 0, fmt.Errorf("read balance response: %w", err)
	}
	if resp.StatusCode >= 300 {
		c.balances.RecordFailure()
		return 0, fmt.Errorf("%w: balance query returned HTTP %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	c.balances.RecordSuccess()
	return gjson.GetBytes(body, "balance.amount").Int(), nil
}
