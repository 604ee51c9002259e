// Package router is the protocol-SDK execution path: a client for the
// protocol gateway that quotes and relays prepared actions. It is the
// preferred path; the direct-RPC effecter in adapter/evm is its fallback.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alemendo/intent-cli/internal/adapter"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/httpx"
	"github.com/alemendo/intent-cli/internal/intent"
)

const defaultBase = "https://gateway.intent.dev/api"

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBase
	}
	return &Client{http: httpClient, baseURL: base, apiKey: apiKey, now: time.Now}
}

func (c *Client) Name() string { return "router-sdk" }

type gatewayRequest struct {
	Network   string            `json:"network"`
	Action    string            `json:"action"`
	Fields    map[string]string `json:"fields"`
	Sender    string            `json:"sender,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
}

type gatewayResponse struct {
	Summary       string            `json:"summary"`
	TxHash        string            `json:"tx_hash,omitempty"`
	EstimatedOut  string            `json:"estimated_out,omitempty"`
	EstimatedGas  string            `json:"estimated_gas,omitempty"`
	FeeUSD        string            `json:"fee_usd,omitempty"`
	Route         string            `json:"route,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
	ErrorMessage  string            `json:"error,omitempty"`
}

// Preview asks the gateway for a quote. No state changes.
func (c *Client) Preview(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	return c.call(ctx, "/v1/quote", req)
}

// Mutate relays the prepared action through the gateway, which builds,
// signs via its configured backend, and broadcasts.
func (c *Client) Mutate(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	return c.call(ctx, "/v1/execute", req)
}

func (c *Client) call(ctx context.Context, path string, req adapter.Request) (adapter.Outcome, error) {
	if req.Intent == nil {
		return adapter.Outcome{}, clierr.New(clierr.CodeInternal, "router call without intent")
	}
	body, err := json.Marshal(gatewayRequest{
		Network:   req.Network,
		Action:    string(req.Intent.Kind()),
		Fields:    intent.Fields(req.Intent),
		Sender:    req.Sender,
		SessionID: req.SessionID,
	})
	if err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeInternal, "encode gateway request", err)
	}

	headers := map[string]string{}
	if strings.TrimSpace(c.apiKey) != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var decoded gatewayResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+path, body, headers, &decoded); err != nil {
		return adapter.Outcome{}, err
	}
	if strings.TrimSpace(decoded.ErrorMessage) != "" {
		return adapter.Outcome{}, clierr.New(clierr.CodeUnsupported,
			fmt.Sprintf("gateway rejected action: %s", decoded.ErrorMessage))
	}

	fields := map[string]string{}
	for key, value := range decoded.Extra {
		fields[key] = value
	}
	setIfPresent(fields, "tx_hash", decoded.TxHash)
	setIfPresent(fields, "estimated_out", decoded.EstimatedOut)
	setIfPresent(fields, "estimated_gas", decoded.EstimatedGas)
	setIfPresent(fields, "fee_usd", decoded.FeeUSD)
	setIfPresent(fields, "route", decoded.Route)
	fields["fetched_at"] = c.now().UTC().Format(time.RFC3339)

	summary := strings.TrimSpace(decoded.Summary)
	if summary == "" {
		summary = fmt.Sprintf("gateway accepted %s on %s", req.Intent.Kind(), req.Network)
	}
	return adapter.Outcome{Summary: summary, Fields: fields}, nil
}

func setIfPresent(fields map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		fields[key] = value
	}
}
