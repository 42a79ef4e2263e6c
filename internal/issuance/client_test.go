package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(httpclient.New("issuance-test", httpclient.Options{Timeout: time.Second, RetryBase: time.Millisecond}), srv.URL, "secret")
}

func TestResolveRecipient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("missing api key")
		}
		switch r.URL.Query().Get("username") {
		case "alice":
			_, _ = w.Write([]byte(`{"recipient":"rcp-1"}`))
		case "ghost":
			http.Error(w, `{"error":"user not found"}`, http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	id, err := c.ResolveRecipient(context.Background(), " @alice ")
	if err != nil || id != "rcp-1" {
		t.Fatalf("ResolveRecipient(alice) = %q, %v", id, err)
	}
	for _, handle := range []string{"ghost", "empty"} {
		if _, err := c.ResolveRecipient(context.Background(), handle); !errors.Is(err, apperr.ErrRecipientNotFound) {
			t.Fatalf("ResolveRecipient(%s) err = %v", handle, err)
		}
	}
	if _, err := c.ResolveRecipient(context.Background(), "@"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty handle err = %v", err)
	}
}

func TestResolveRecipientUpstreamFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.ResolveRecipient(context.Background(), "alice")
	if !errors.Is(err, apperr.ErrExternalService) || errors.Is(err, apperr.ErrRecipientNotFound) {
		t.Fatalf("err = %v, want external service error", err)
	}
}

func TestPrepareIssuance(t *testing.T) {
	validUntil := time.Now().Add(5 * time.Minute).Unix()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req prepareRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Recipient != "rcp-1" || req.Quantity != 100 || req.Wallet != "EQtreasury" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages":   []map[string]string{{"address": "EQfragment", "amount": "460000000", "payload": "te6cc"}},
			"validUntil": validUntil,
		})
	})

	p, err := c.PrepareIssuance(context.Background(), "rcp-1", 100, "EQtreasury")
	if err != nil {
		t.Fatalf("PrepareIssuance() error = %v", err)
	}
	if len(p.Messages) != 1 || p.Messages[0].Amount != "460000000" || p.ValidUntil.Unix() != validUntil {
		t.Fatalf("prepared = %+v", p)
	}
}

func TestPrepareIssuanceRejectsEmptyAndExpired(t *testing.T) {
	cases := map[string]string{
		"empty":   `{"messages":[],"validUntil":0}`,
		"expired": `{"messages":[{"address":"EQ","amount":"1"}],"validUntil":1000}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			if _, err := c.PrepareIssuance(context.Background(), "r", 50, "EQ"); !errors.Is(err, apperr.ErrExternalService) {
				t.Fatalf("err = %v, want external service error", err)
			}
		})
	}
}

func TestUnitPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quantity") != "50" {
			t.Errorf("quantity = %s", r.URL.Query().Get("quantity"))
		}
		_, _ = w.Write([]byte(`{"price":"0.23"}`))
	})
	got, err := c.UnitPrice(context.Background())
	if err != nil || !got.Equal(decimal.RequireFromString("0.0046")) {
		t.Fatalf("UnitPrice() = %s, %v", got, err)
	}
}
