package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alemendo/intent-cli/internal/adapter"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/httpx"
	"github.com/alemendo/intent-cli/internal/intent"
)

func testRequest() adapter.Request {
	return adapter.Request{
		Network:   "ethereum",
		Sender:    "0xcccccccccccccccccccccccccccccccccccccccc",
		SessionID: "s-1",
		Intent: intent.Transfer{
			Token:     "USDC",
			Recipient: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Amount:    "10000",
		},
	}
}

func TestPreviewPostsQuote(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody gatewayRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(gatewayResponse{
			Summary:      "quoted transfer",
			EstimatedGas: "65000",
			FeeUSD:       "0.42",
		})
	}))
	defer server.Close()

	client := New(httpx.New(2*time.Second, 0), server.URL, "secret-key")
	outcome, err := client.Preview(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if gotPath != "/v1/quote" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.Network != "ethereum" || gotBody.Action != "transfer" || gotBody.SessionID != "s-1" {
		t.Fatalf("unexpected gateway request: %+v", gotBody)
	}
	if gotBody.Fields["amount"] != "10000" {
		t.Fatalf("intent fields not forwarded: %+v", gotBody.Fields)
	}
	if outcome.Summary != "quoted transfer" {
		t.Fatalf("summary = %q", outcome.Summary)
	}
	if outcome.Fields["estimated_gas"] != "65000" || outcome.Fields["fee_usd"] != "0.42" {
		t.Fatalf("outcome fields = %+v", outcome.Fields)
	}
}

func TestMutatePostsExecute(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(gatewayResponse{Summary: "submitted", TxHash: "0xfeed"})
	}))
	defer server.Close()

	client := New(httpx.New(2*time.Second, 0), server.URL, "")
	outcome, err := client.Mutate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if gotPath != "/v1/execute" {
		t.Fatalf("path = %q", gotPath)
	}
	if outcome.Fields["tx_hash"] != "0xfeed" {
		t.Fatalf("outcome fields = %+v", outcome.Fields)
	}
}

func TestGatewayRejectionSurfacesAsUnsupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gatewayResponse{ErrorMessage: "route not found"})
	}))
	defer server.Close()

	client := New(httpx.New(2*time.Second, 0), server.URL, "")
	_, err := client.Preview(context.Background(), testRequest())
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported rejection, got %v", err)
	}
}
