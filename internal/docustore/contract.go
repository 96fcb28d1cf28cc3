package docustore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
)

// ContractConfig configures the chain-backed store.
type ContractConfig struct {
	// LCDURL is the chain's REST endpoint used for smart queries.
	LCDURL string
	// SignerURL is the transaction gateway that signs and broadcasts
	// executes on behalf of gateway-managed accounts.
	SignerURL string
	// ContractAddress is the docustore contract.
	ContractAddress string
	// HTTPClient overrides the default retrying client (tests).
	HTTPClient *http.Client
}

// Contract talks to the docustore smart contract: reads go through the
// chain's smart-query endpoint, writes through the transaction gateway that
// signs and broadcasts on the sender's behalf. Wallet custody and transaction
// signing are the gateway's problem, not this client's.
type Contract struct {
	lcdURL    string
	signerURL string
	contract  string
	client    *http.Client
}

// NewContract builds the chain-backed store. The default client retries
// transient failures with backoff; queries are idempotent and executes are
// only retried on connection errors, before anything reached the chain.
func NewContract(cfg ContractConfig) *Contract {
	client := cfg.HTTPClient
	if client == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 3
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.HTTPClient.Timeout = 15 * time.Second
		rc.Logger = nil
		client = rc.StandardClient()
	}
	return &Contract{
		lcdURL:    strings.TrimRight(cfg.LCDURL, "/"),
		signerURL: strings.TrimRight(cfg.SignerURL, "/"),
		contract:  cfg.ContractAddress,
		client:    client,
	}
}

// Contract message shapes. Casing matches the deployed docustore contract:
// queries are snake_case, execute variants are capitalized.
type readQuery struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
}

type ownerQuery struct {
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
}

type collectionQuery struct {
	Collection string `json:"collection"`
}

type writeMsg struct {
	Collection string `json:"collection"`
	Document   string `json:"document"`
	Data       string `json:"data,omitempty"`
}

func (c *Contract) Read(ctx context.Context, collection, documentID string) (Document, error) {
	res, err := c.smartQuery(ctx, map[string]any{"read": readQuery{Collection: collection, DocumentID: documentID}})
	if err != nil {
		return Document{}, err
	}
	data := res.Get("data")
	if !data.Exists() {
		return Document{}, sentinel.ErrNotFound
	}
	return Document{ID: documentID, Data: data.String()}, nil
}

func (c *Contract) ListByOwner(ctx context.Context, collection string, owner id.AccountID) ([]Document, error) {
	res, err := c.smartQuery(ctx, map[string]any{"user_documents": ownerQuery{Owner: owner.String(), Collection: collection}})
	if err != nil {
		return nil, err
	}
	docs := parseDocumentTuples(res)
	for i := range docs {
		docs[i].Owner = owner
	}
	return docs, nil
}

func (c *Contract) ListCollection(ctx context.Context, collection string) ([]Document, error) {
	res, err := c.smartQuery(ctx, map[string]any{"collection": collectionQuery{Collection: collection}})
	if err != nil {
		return nil, err
	}
	// Owner is not part of the collection listing; callers read it out of
	// the document payload where they need it.
	return parseDocumentTuples(res), nil
}

func (c *Contract) Set(ctx context.Context, sender id.AccountID, collection, documentID, data string) error {
	return c.execute(ctx, sender, map[string]any{"Set": writeMsg{Collection: collection, Document: documentID, Data: data}})
}

func (c *Contract) Update(ctx context.Context, sender id.AccountID, collection, documentID, data string) error {
	return c.execute(ctx, sender, map[string]any{"Update": writeMsg{Collection: collection, Document: documentID, Data: data}})
}

func (c *Contract) Delete(ctx context.Context, sender id.AccountID, collection, documentID string) error {
	return c.execute(ctx, sender, map[string]any{"Delete": writeMsg{Collection: collection, Document: documentID}})
}

// smartQuery issues a read-only contract query through the LCD endpoint.
func (c *Contract) smartQuery(ctx context.Context, query any) (gjson.Result, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal contract query: %w", err)
	}
	url := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s",
		c.lcdURL, c.contract, base64.StdEncoding.EncodeToString(queryJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: docustore query: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read docustore response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return gjson.Result{}, sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return gjson.Result{}, fmt.Errorf("%w: docustore query returned HTTP %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		// The LCD reports contract-level "not found" as a 4xx with a message.
		if strings.Contains(strings.ToLower(gjson.GetBytes(body, "message").String()), "not found") {
			return gjson.Result{}, sentinel.ErrNotFound
		}
		return gjson.Result{}, fmt.Errorf("docustore query failed with HTTP %d", resp.StatusCode)
	}
	return gjson.GetBytes(body, "data"), nil
}

// execute submits a contract execute through the transaction gateway and
// interprets the broadcast result. A non-zero code means the chain rejected
// the transaction.
func (c *Contract) execute(ctx context.Context, sender id.AccountID, msg any) error {
	payload, err := json.Marshal(map[string]any{
		"sender":   sender.String(),
		"contract": c.contract,
		"msg":      msg,
	})
	if err != nil {
		return fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.signerURL+"/v1/tx/execute", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: docustore execute: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read execute response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: docustore execute returned HTTP %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	code := gjson.GetBytes(body, "code").Int()
	if code != 0 {
		rawLog := gjson.GetBytes(body, "raw_log").String()
		lower := strings.ToLower(rawLog)
		switch {
		case strings.Contains(lower, "unauthorized"):
			return dErrors.Newf(dErrors.CodeForbidden, "docustore rejected write: %s", rawLog)
		case strings.Contains(lower, "not found"):
			return sentinel.ErrNotFound
		default:
			return dErrors.Newf(dErrors.CodeInternal, "docustore write failed (code %d): %s", code, rawLog)
		}
	}
	return nil
}

// parseDocumentTuples decodes the contract's listing shape: an array of
// [document_id, {"data": "<blob>"}] tuples under "documents".
func parseDocumentTuples(res gjson.Result) []Document {
	var docs []Document
	res.Get("documents").ForEach(func(_, tuple gjson.Result) bool {
		entries := tuple.Array()
		if len(entries) != 2 {
			return true
		}
		docs = append(docs, Document{
			ID:   entries[0].String(),
			Data: entries[1].Get("data").String(),
		})
		return true
	})
	return docs
}
